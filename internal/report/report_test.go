package report

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleRun() *RunResult {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &RunResult{
		ID:       "6f1c0a52-run",
		BaseURL:  "http://calc-web",
		Start:    start,
		Duration: 3 * time.Second,
		Suites: []*SuiteResult{{
			Name:     "Calc",
			File:     "scenarios/calc.yaml",
			Start:    start,
			Duration: 3 * time.Second,
			Cases: []CaseResult{
				{Suite: "Calc", Name: "can add two numbers", Status: StatusPass, Duration: 1200 * time.Millisecond},
				{Suite: "Calc", Name: "can divide by zero", Status: StatusFail, Duration: time.Second,
					Failure: &Failure{
						Type: FailureAssertion, Step: "step 4", Action: "assertContains", Selector: "#result-area",
						Expected: "Error", Actual: "Result: Infinity",
						Message: "Timed out retrying after 1000ms: expected <#result-area> to contain 'Error', but the text was 'Result: Infinity'",
					},
					Screenshots: []string{"screenshots/calc.yaml/Calc -- can divide by zero (failed).png"},
				},
				{Suite: "Calc", Name: "history", Status: StatusError, Duration: 10 * time.Millisecond,
					Failure: &Failure{Type: FailureError, Step: "open tab", Message: "browser gone"}},
				{Suite: "Calc", Name: "pending", Status: StatusSkip},
			},
		}},
	}
}

func TestTotals(t *testing.T) {
	run := sampleRun()
	got := run.Totals()
	want := Totals{Tests: 4, Passed: 1, Failures: 1, Errors: 1, Skipped: 1}
	if got != want {
		t.Errorf("Totals() = %+v, want %+v", got, want)
	}
	if run.Passed() {
		t.Error("Passed() = true with failures")
	}

	run.Suites[0].Cases = run.Suites[0].Cases[:1]
	if !run.Passed() {
		t.Error("Passed() = false for an all-pass run")
	}
}

func TestFullTitle(t *testing.T) {
	c := CaseResult{Suite: "Calc", Name: "can add two numbers"}
	if got := c.FullTitle(); got != "Calc can add two numbers" {
		t.Errorf("FullTitle() = %q", got)
	}
	if got := (CaseResult{Name: "x"}).FullTitle(); got != "x" {
		t.Errorf("FullTitle() = %q", got)
	}
}

func TestWriteJUnit(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJUnit(&buf, sampleRun()); err != nil {
		t.Fatalf("WriteJUnit() error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, xml.Header) {
		t.Error("missing XML header")
	}

	var doc junitTestSuites
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("report is not valid XML: %v", err)
	}
	if doc.Tests != 4 || doc.Failures != 1 || doc.Errors != 1 || doc.Skipped != 1 {
		t.Errorf("testsuites counts = %+v", doc)
	}
	if len(doc.Suites) != 1 {
		t.Fatalf("suites = %d", len(doc.Suites))
	}
	s := doc.Suites[0]
	if s.Name != "Calc" || s.File != "scenarios/calc.yaml" || s.Time != "3.000" {
		t.Errorf("suite attrs = %+v", s)
	}
	if len(s.Properties) != 2 || s.Properties[0].Value != "6f1c0a52-run" {
		t.Errorf("properties = %+v", s.Properties)
	}

	cases := s.Cases
	if len(cases) != 4 {
		t.Fatalf("testcases = %d", len(cases))
	}
	if cases[0].Name != "Calc can add two numbers" || cases[0].Classname != "can add two numbers" || cases[0].Time != "1.200" {
		t.Errorf("testcase = %+v", cases[0])
	}
	if cases[0].Failure != nil || cases[0].Error != nil || cases[0].Skipped != nil {
		t.Error("passing case carries a problem element")
	}
	f := cases[1].Failure
	if f == nil || f.Type != "AssertionError" || !strings.Contains(f.Message, "to contain 'Error'") {
		t.Errorf("failure = %+v", f)
	}
	if !strings.Contains(f.Body, `actual: "Result: Infinity"`) {
		t.Errorf("failure body = %q", f.Body)
	}
	if !strings.Contains(cases[1].SystemOut, "(failed).png") {
		t.Errorf("system-out = %q", cases[1].SystemOut)
	}
	if e := cases[2].Error; e == nil || e.Message != "browser gone" {
		t.Errorf("error = %+v", e)
	}
	if cases[3].Skipped == nil {
		t.Error("skipped case missing <skipped/>")
	}
}

func TestWriteJUnitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "calce2e_result.xml")
	if err := WriteJUnitFile(path, sampleRun()); err != nil {
		t.Fatalf("WriteJUnitFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`<testsuites name="calce2e"`)) {
		t.Errorf("unexpected report:\n%s", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %v", entries)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, sampleRun(), TableOptions{Title: "calce2e"})
	out := buf.String()
	for _, want := range []string{"can add two numbers", "can divide by zero", "PASS", "FAIL", "SKIP", "1.2s", "4 TESTS"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{61 * time.Second, "1m1s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
