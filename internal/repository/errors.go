package repository

import "errors"

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountVerified is returned when a pending save targets an account that is already verified.
	ErrAccountVerified = errors.New("account already verified")
	// ErrStateConflict is returned when a conditional update finds the account no longer in the expected state.
	ErrStateConflict = errors.New("account state changed concurrently")
)
