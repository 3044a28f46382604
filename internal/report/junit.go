package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name       string          `xml:"name,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	File       string          `xml:"file,attr,omitempty"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       string          `xml:"time,attr"`
	Properties []junitProperty `xml:"properties>property,omitempty"`
	Cases      []junitTestCase `xml:"testcase"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	Skipped   *struct{}     `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",cdata"`
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func problemBody(f *Failure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", f.Type, f.Message)
	if f.Step != "" {
		fmt.Fprintf(&b, "at %s (%s)\n", f.Step, f.Action)
	}
	if f.Selector != "" {
		fmt.Fprintf(&b, "selector: %s\n", f.Selector)
	}
	if f.Expected != "" || f.Actual != "" {
		fmt.Fprintf(&b, "expected: %q\nactual: %q\n", f.Expected, f.Actual)
	}
	return b.String()
}

func toJUnit(run *RunResult) junitTestSuites {
	tot := run.Totals()
	out := junitTestSuites{
		Name:     "calce2e",
		Tests:    tot.Tests,
		Failures: tot.Failures,
		Errors:   tot.Errors,
		Skipped:  tot.Skipped,
		Time:     seconds(run.Duration),
	}
	for _, s := range run.Suites {
		st := s.Totals()
		js := junitTestSuite{
			Name:      s.Name,
			Timestamp: s.Start.UTC().Format("2006-01-02T15:04:05"),
			File:      filepath.ToSlash(s.File),
			Tests:     st.Tests,
			Failures:  st.Failures,
			Errors:    st.Errors,
			Skipped:   st.Skipped,
			Time:      seconds(s.Duration),
			Properties: []junitProperty{
				{Name: "runId", Value: run.ID},
				{Name: "baseUrl", Value: run.BaseURL},
			},
		}
		for _, c := range s.Cases {
			tc := junitTestCase{
				Name:      c.FullTitle(),
				Classname: c.Name,
				Time:      seconds(c.Duration),
			}
			if len(c.Screenshots) > 0 {
				tc.SystemOut = "screenshots:\n" + strings.Join(c.Screenshots, "\n")
			}
			f := c.Failure
			if f == nil {
				f = &Failure{Type: FailureError, Message: "unknown error"}
			}
			switch c.Status {
			case StatusFail:
				tc.Failure = &junitProblem{Message: f.Message, Type: f.Type, Body: problemBody(f)}
			case StatusError:
				tc.Error = &junitProblem{Message: f.Message, Type: f.Type, Body: problemBody(f)}
			case StatusSkip:
				tc.Skipped = &struct{}{}
			}
			js.Cases = append(js.Cases, tc)
		}
		out.Suites = append(out.Suites, js)
	}
	return out
}

// WriteJUnit encodes run as JUnit XML, one testcase per scenario.
func WriteJUnit(w io.Writer, run *RunResult) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(toJUnit(run)); err != nil {
		return fmt.Errorf("encode junit: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteJUnitFile writes the report to path, creating parent directories.
// The file is replaced atomically.
func WriteJUnitFile(path string, run *RunResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".calce2e-*.xml")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := WriteJUnit(tmp, run); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
