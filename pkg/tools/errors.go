package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for schema registration and dispatch.
var (
	// ErrDuplicateSchema indicates two schemas share a name.
	ErrDuplicateSchema = errors.New("tools: duplicate schema name")

	// ErrUnknownFunction indicates no registered schema matches the
	// requested name.
	ErrUnknownFunction = errors.New("tools: unknown function")

	// ErrInvalidArgument indicates the argument mapping failed
	// validation against the schema (missing required, unknown name,
	// wrong type, or value outside an enum).
	ErrInvalidArgument = errors.New("tools: invalid argument")

	// ErrExecution indicates the bound handler returned an error or
	// panicked. Dispatch converts it into an error result so the
	// conversation can recover.
	ErrExecution = errors.New("tools: execution failed")
)

// ValidationError describes why an argument mapping was rejected.
// It wraps ErrInvalidArgument so callers can match with errors.Is.
type ValidationError struct {
	Function string
	Param    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tools: %s: argument %q %s", e.Function, e.Param, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// ExecutionError wraps a failure raised by a handler.
type ExecutionError struct {
	Function string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tools: %s: %v", e.Function, e.Err)
}

func (e *ExecutionError) Unwrap() error { return ErrExecution }
