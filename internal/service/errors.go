package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrAlreadyVoted      = errors.New("already voted on this story")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRoundClosed       = errors.New("story is not open for voting")

	// ErrNoVotes is a Forbidden: a round without votes cannot be revealed
	ErrNoVotes = fmt.Errorf("%w: no votes to reveal", ErrForbidden)
)

// StorageError wraps a collaborator failure. The cause is kept for logs and
// errors.Is but not shown to clients.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}
