package service

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a task is missing or owned by someone else.
var ErrNotFound = errors.New("task not found")

// ErrMissingCredentials marks suggester failures caused by an absent API key.
var ErrMissingCredentials = errors.New("AI credentials are not configured")

// InvalidOperationError is a user-facing rejection. It is raised before any write.
type InvalidOperationError struct {
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return e.Reason
}

func invalidf(format string, args ...any) error {
	return &InvalidOperationError{Reason: fmt.Sprintf(format, args...)}
}

// GenerationError wraps a failed subtask suggestion call.
type GenerationError struct {
	Err  error
	Hint string
}

func (e *GenerationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("generate subtasks: %v (%s)", e.Err, e.Hint)
	}
	return fmt.Sprintf("generate subtasks: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func notFound(id uint) error {
	return fmt.Errorf("task %d: %w", id, ErrNotFound)
}
