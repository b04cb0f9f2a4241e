// Package hash provides the one-way functions used for secrets at rest:
// bcrypt for passwords and a keyed HMAC for one-time codes.
package hash
