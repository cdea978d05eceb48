// Package sentinel holds the facts stores and auth backends report about
// records. Services match them with errors.Is and translate them into coded
// domain errors; input validation never uses them.
package sentinel

import "errors"

var (
	// ErrNotFound: no record for the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
	// ErrExpired: the token or session is past its expiry.
	ErrExpired = errors.New("expired")
	// ErrAlreadyUsed: a single-use token was consumed before.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState: the record cannot take the requested transition.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: the backend could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
