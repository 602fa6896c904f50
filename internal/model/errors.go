package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no row matches the identifier.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSignature is returned when inserting a user record whose
	// fingerprint signature already exists. The database unique constraint is
	// the authoritative guard; the in-run existence pre-check is an
	// optimization on top of it.
	ErrDuplicateSignature = errors.New("duplicate fingerprint signature")
)

// TransientError wraps a store error caused by a shared resource or
// connectivity fault. Runs failing with a transient error are eligible for
// redelivery by the dispatcher; everything else is terminal.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether any error in the chain is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
