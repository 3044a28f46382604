package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/report"
)

// AssertionError is an observed value that did not match what the step
// expected. Retried is set when the value was polled until the timeout.
type AssertionError struct {
	Selector string
	Expected string
	Actual   string
	Message  string
	Retried  bool
}

func (e *AssertionError) Error() string { return e.Message }

// TimeoutError is an awaited element or request that did not show up in
// time.
type TimeoutError struct {
	Action   string
	Selector string
	Timeout  time.Duration
	Message  string
}

func (e *TimeoutError) Error() string { return e.Message }

func timedOut(action, selector string, timeout time.Duration, what string) *TimeoutError {
	return &TimeoutError{
		Action:   action,
		Selector: selector,
		Timeout:  timeout,
		Message:  fmt.Sprintf("Timed out retrying after %dms: %s", timeout.Milliseconds(), what),
	}
}

// toFailure classifies err for the report.
func toFailure(label string, step Step, err error) *report.Failure {
	f := &report.Failure{
		Type:     report.FailureError,
		Step:     label,
		Action:   step.Action,
		Selector: step.Selector,
		Message:  err.Error(),
	}
	var ae *AssertionError
	var te *TimeoutError
	switch {
	case errors.As(err, &ae):
		f.Type = report.FailureAssertion
		f.Expected = ae.Expected
		f.Actual = ae.Actual
		f.TimedOut = ae.Retried
	case errors.As(err, &te):
		f.Type = report.FailureTimeout
		f.TimedOut = true
		f.Expected = step.expected()
	}
	return f
}
