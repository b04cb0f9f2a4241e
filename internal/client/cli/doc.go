// Package cli is the interactive terminal client: register, verify the
// emailed code, log in, and show the cached session.
package cli
