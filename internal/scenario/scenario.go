// Package scenario loads YAML suites of browser scenarios and runs them
// one at a time against the calculator page.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SuiteBrowser = "browser"
	SuiteAPI     = "api"
)

// Suite is one spec file: a named, ordered collection of independent
// scenarios sharing a beforeEach prelude. API suites talk to the backend
// directly and never open a tab.
type Suite struct {
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type,omitempty"`
	BeforeEach []Step     `yaml:"beforeEach,omitempty"`
	Scenarios  []Scenario `yaml:"scenarios"`

	File string `yaml:"-"`
}

// Scenario is identified by its description and runs its steps in order.
type Scenario struct {
	Name  string `yaml:"name"`
	Skip  bool   `yaml:"skip,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step is one action from the vocabulary. Which fields matter depends on
// Action; see the validators in actions.go.
type Step struct {
	Action      string  `yaml:"action"`
	Selector    string  `yaml:"selector,omitempty"`
	Text        string  `yaml:"text,omitempty"`
	Expect      *string `yaml:"expect,omitempty"`
	Count       *int    `yaml:"count,omitempty"`
	Times       int     `yaml:"times,omitempty"`
	URL         string  `yaml:"url,omitempty"`
	Method      string  `yaml:"method,omitempty"`
	Fixture     string  `yaml:"fixture,omitempty"`
	Alias       string  `yaml:"alias,omitempty"`
	Status      int     `yaml:"status,omitempty"`
	ContentType string  `yaml:"contentType,omitempty"`
	Name        string  `yaml:"name,omitempty"`
}

func (s Step) expected() string {
	switch {
	case s.Expect != nil:
		return *s.Expect
	case s.Count != nil:
		return strconv.Itoa(*s.Count)
	case s.Action == ActionAssertStatus:
		return strconv.Itoa(s.Status)
	}
	return ""
}

func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Action)
	b.WriteByte('(')
	var args []string
	for _, a := range []string{s.Method, s.URL, s.Selector, s.Text} {
		if a != "" {
			args = append(args, strconv.Quote(a))
		}
	}
	if s.Expect != nil || s.Count != nil || s.Action == ActionAssertStatus {
		args = append(args, strconv.Quote(s.expected()))
	}
	if s.Alias != "" {
		args = append(args, "@"+s.Alias)
	}
	b.WriteString(strings.Join(args, ", "))
	b.WriteByte(')')
	return b.String()
}

// Load parses one suite file. Unknown keys are rejected so typos in
// action parameters fail at load time rather than mid-run.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", path, err)
	}
	s.File = path
	return s, nil
}

func Parse(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty suite")
		}
		return nil, fmt.Errorf("parse: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(s.Scenarios) == 0 {
		return nil, fmt.Errorf("at least one scenario is required")
	}
	switch s.Type {
	case "", SuiteBrowser, SuiteAPI:
	default:
		return nil, fmt.Errorf("unknown suite type %q", s.Type)
	}
	return &s, nil
}

// NeedsBrowser reports whether scenarios of s run in a browser tab.
func (s *Suite) NeedsBrowser() bool { return s.Type != SuiteAPI }

// Validate checks every step against the action vocabulary, that scenario
// names are unique, that aliases are registered before they are awaited,
// that responses are requested before they are asserted and that referenced
// fixtures exist.
func (s *Suite) Validate(fixtures *FixtureStore) error {
	for i, st := range s.BeforeEach {
		if err := s.validateStep(st, fixtures); err != nil {
			return fmt.Errorf("beforeEach step %d: %w", i+1, err)
		}
	}
	prelude := stubsIn(s.BeforeEach)
	preludeRequests := requestsIn(s.BeforeEach)
	if i := firstUnrequested(s.BeforeEach, false); i >= 0 {
		return fmt.Errorf("beforeEach step %d: %s before any request", i+1, s.BeforeEach[i].Action)
	}

	seen := make(map[string]bool, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenario without name")
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate scenario %q", sc.Name)
		}
		seen[sc.Name] = true
		if len(sc.Steps) == 0 {
			return fmt.Errorf("scenario %q: no steps", sc.Name)
		}

		stubs := make(map[string]Step, len(prelude))
		for k, v := range prelude {
			stubs[k] = v
		}
		if i := firstUnrequested(sc.Steps, preludeRequests); i >= 0 {
			return fmt.Errorf("scenario %q step %d: %s before any request", sc.Name, i+1, sc.Steps[i].Action)
		}
		for i, st := range sc.Steps {
			if err := s.validateStep(st, fixtures); err != nil {
				return fmt.Errorf("scenario %q step %d: %w", sc.Name, i+1, err)
			}
			switch st.Action {
			case ActionStub:
				stubs[st.Alias] = st
			case ActionWaitForRequest:
				reg, ok := stubs[st.Alias]
				if !ok {
					return fmt.Errorf("scenario %q step %d: waitForRequest on unregistered alias @%s", sc.Name, i+1, st.Alias)
				}
				if st.Method != "" && reg.Method != "" && !strings.EqualFold(st.Method, reg.Method) {
					return fmt.Errorf("scenario %q step %d: @%s is registered for %s, not %s", sc.Name, i+1, st.Alias, reg.Method, st.Method)
				}
				if st.URL != "" && st.URL != reg.URL {
					return fmt.Errorf("scenario %q step %d: @%s is registered for %s, not %s", sc.Name, i+1, st.Alias, reg.URL, st.URL)
				}
			}
		}
	}
	return nil
}

func (s *Suite) validateStep(st Step, fixtures *FixtureStore) error {
	if !s.NeedsBrowser() && !isAPIAction(st.Action) && st.Action != "" {
		return fmt.Errorf("%s needs a browser, not allowed in an api suite", st.Action)
	}
	return validateStep(st, fixtures)
}

func requestsIn(steps []Step) bool {
	for _, st := range steps {
		if st.Action == ActionRequest {
			return true
		}
	}
	return false
}

// firstUnrequested returns the index of the first response assertion that
// no earlier request can satisfy, or -1.
func firstUnrequested(steps []Step, requested bool) int {
	for i, st := range steps {
		switch st.Action {
		case ActionRequest:
			requested = true
		case ActionAssertStatus, ActionAssertBody:
			if !requested {
				return i
			}
		}
	}
	return -1
}

func stubsIn(steps []Step) map[string]Step {
	out := make(map[string]Step)
	for _, st := range steps {
		if st.Action == ActionStub {
			out[st.Alias] = st
		}
	}
	return out
}

// Count returns how many scenarios the suite holds.
func (s *Suite) Count() int { return len(s.Scenarios) }
