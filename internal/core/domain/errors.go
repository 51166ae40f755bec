package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrNameConflict       = errors.New("container name already in use")
	ErrSubscriptionClosed = errors.New("log subscription closed")
)

// ValidationError reports malformed or missing request input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BuildFailedError carries the message of a fatal build event.
type BuildFailedError struct {
	Message string
}

func (e *BuildFailedError) Error() string {
	return e.Message
}

// EngineError wraps a failed call against the container engine.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// ContainerUnhealthyError reports a container that was not running after the
// settle delay, with its output.
type ContainerUnhealthyError struct {
	State ContainerState
	Logs  string
}

func (e *ContainerUnhealthyError) Error() string {
	return fmt.Sprintf("Container exited unexpectedly. Logs: %s", e.Logs)
}

// CleanupError records a failed removal during rollback or pruning. It is
// logged and never returned to callers of the orchestrator.
type CleanupError struct {
	Resource string
	ID       string
	Err      error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("remove %s %s: %v", e.Resource, e.ID, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
