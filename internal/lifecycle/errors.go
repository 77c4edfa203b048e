package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel errors for lifecycle operations.
var (
	ErrInvalidTask      = errors.New("invalid task")
	ErrTaskNotFound     = errors.New("task not found")
	ErrPaymentFailed    = errors.New("payment failed")
	ErrCompletionFailed = errors.New("completion failed")
	ErrDeletionFailed   = errors.New("deletion failed")
	ErrDeletionLocked   = errors.New("task can no longer be deleted")
	ErrAlreadyCompleted = errors.New("task already completed")
	ErrNotCompleted     = errors.New("task is not completed")
	ErrTaskOutdated     = errors.New("task is past its due date")
	ErrProofUnsupported = errors.New("proof upload not configured")
)

// ValidationError describes why a draft was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidTask.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidTask
}
