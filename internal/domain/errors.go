package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a request is missing fields or carries out-of-range values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidParticipantID indicates a participant reference is not well-formed for the active store.
	ErrInvalidParticipantID = errors.New("invalid participant id")
	// ErrDuplicateParticipant is returned when a contact handle is already registered.
	ErrDuplicateParticipant = errors.New("participant with this contact handle already exists")
	// ErrParticipantNotFound is returned when a participant reference does not resolve.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrAlreadyCompleted signals that a completion was already recorded; the stored record is unchanged.
	ErrAlreadyCompleted = errors.New("participant already completed the quiz")
	// ErrEmptyPool indicates the question bank has nothing to serve; a quiz cannot start.
	ErrEmptyPool = errors.New("question pool is empty")
	// ErrInvalidOption indicates a selection that is not one of the current question's options.
	ErrInvalidOption = errors.New("option not offered for current question")
	// ErrSessionActive is returned when a participant already has a live session.
	ErrSessionActive = errors.New("quiz session already active for participant")
	// ErrSessionClosed is returned when an event arrives after the session left the active state.
	ErrSessionClosed = errors.New("quiz session is not active")
)

// StorageError wraps a persistence failure. Its message is safe to log but not to return to callers.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// StorageFailure builds a StorageError for op.
func StorageFailure(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Invalid wraps ErrInvalidInput with a field-level reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
