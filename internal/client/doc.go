// Package client talks to the LMS auth API and keeps the last login on disk.
//
// The stored session is a convenience cache: its presence means the user is
// shown as logged in. The server never sees it and it is not revalidated.
package client
