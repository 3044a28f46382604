// Package report holds run results and renders them as JUnit XML and
// console tables.
package report

import "time"

// Status is the outcome of one scenario.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
	StatusSkip  Status = "skip"
)

const (
	FailureAssertion = "AssertionError"
	FailureTimeout   = "TimeoutError"
	FailureError     = "Error"
)

// Failure describes the first step of a scenario that did not hold.
type Failure struct {
	Type     string
	Step     string
	Action   string
	Selector string
	Expected string
	Actual   string
	Message  string
	TimedOut bool
}

// CaseResult is one scenario's outcome.
type CaseResult struct {
	Suite       string
	Name        string
	Status      Status
	Duration    time.Duration
	Failure     *Failure
	Screenshots []string
}

// FullTitle is the suite and scenario name joined the way reports show it.
func (c CaseResult) FullTitle() string {
	if c.Suite == "" {
		return c.Name
	}
	return c.Suite + " " + c.Name
}

type SuiteResult struct {
	Name     string
	File     string
	Start    time.Time
	Duration time.Duration
	Cases    []CaseResult
}

type RunResult struct {
	ID       string
	BaseURL  string
	Start    time.Time
	Duration time.Duration
	Suites   []*SuiteResult
}

type Totals struct {
	Tests    int
	Passed   int
	Failures int
	Errors   int
	Skipped  int
}

func (t *Totals) add(s Status) {
	t.Tests++
	switch s {
	case StatusPass:
		t.Passed++
	case StatusFail:
		t.Failures++
	case StatusError:
		t.Errors++
	case StatusSkip:
		t.Skipped++
	}
}

func (s *SuiteResult) Totals() Totals {
	var t Totals
	for _, c := range s.Cases {
		t.add(c.Status)
	}
	return t
}

func (r *RunResult) Totals() Totals {
	var t Totals
	for _, s := range r.Suites {
		for _, c := range s.Cases {
			t.add(c.Status)
		}
	}
	return t
}

// Passed reports whether no scenario failed or errored.
func (r *RunResult) Passed() bool {
	t := r.Totals()
	return t.Failures == 0 && t.Errors == 0
}
