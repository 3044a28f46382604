// Package exitcodes defines the process exit codes and the error types
// that select them.
package exitcodes

import (
	"errors"
	"fmt"
)

const (
	Success     = 0 // every scenario passed
	TestFailure = 1 // at least one scenario failed or errored
	RuntimeErr  = 2 // config, startup or browser errors, or an interrupted run
)

// RuntimeError means the run could not be carried out as configured.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports scenarios that did not pass.
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// For maps err to the exit code it should produce. Untyped errors are
// treated as runtime errors.
func For(err error) int {
	switch {
	case err == nil:
		return Success
	case IsRuntimeError(err):
		return RuntimeErr
	case IsTestFailureError(err):
		return TestFailure
	default:
		return RuntimeErr
	}
}
