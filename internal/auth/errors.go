package auth

import (
	"errors"
	"fmt"
)

// Errors returned by the token, scope and client services.
// ErrInvalidClient is returned for both unknown client ids and wrong secrets,
// callers must not be able to tell the two apart.
var (
	ErrInvalidClient      = errors.New("client authentication failed")
	ErrMissingCredentials = errors.New("client credentials missing")
	ErrUnauthorizedClient = errors.New("client is not authorized for this grant type")
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateID        = errors.New("duplicate token identifier")
)

// PersistenceError reports a failed read or write against a backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistenceError reports whether err originated from a backing store.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
