package ledger

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/tally/internal/store"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned when a transaction belongs to another user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for missing transactions and unknown accounts.
	ErrNotFound = store.ErrNotFound
	// ErrPersistence is matched by every *PersistenceError.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError describes one rejected draft field.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// PersistenceError is a store failure. The unit of work it happened in was
// rolled back.
type PersistenceError struct {
	Stage Stage
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }
