package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrEvaluationInterrupted indicates the user aborted an interactive
	// evaluation session. It is fatal for the evaluation phase; raw
	// generation outputs collected before the interrupt are still returned.
	ErrEvaluationInterrupted = errors.New("evaluation interrupted by user")

	// ErrUnknownModel indicates a requested model id is not present in the
	// model catalog.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownEvaluator indicates an evaluation method with no registered
	// strategy.
	ErrUnknownEvaluator = errors.New("unknown evaluation method")
)

// ConfigError represents a fatal setup failure: the run never starts.
// It wraps the underlying cause so callers can inspect it with errors.Is.
type ConfigError struct {
	// Component names the part of the pipeline that failed to configure.
	Component string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As inspection.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a ConfigError for the given component.
func NewConfigError(component string, err error) *ConfigError {
	return &ConfigError{Component: component, Err: err}
}

// FormatError indicates a prompt template references a field the data point
// does not provide. It is recorded inline on the PointResult; the run
// continues with the next data point.
type FormatError struct {
	// Key is the placeholder name that had no matching field.
	Key string
}

// Error implements the error interface for FormatError.
func (e *FormatError) Error() string {
	return fmt.Sprintf("missing key %q in data point needed for prompt template", e.Key)
}
