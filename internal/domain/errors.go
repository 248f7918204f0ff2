package domain

import "errors"

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned when an insert violates the unique email
	// constraint.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateExternalID is returned when an insert violates the unique
	// external identifier constraint.
	ErrDuplicateExternalID = errors.New("external id already registered")
)
