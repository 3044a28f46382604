package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func statusText(s Status) string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusError:
		return "ERROR"
	case StatusSkip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// TableOptions controls the console summary.
type TableOptions struct {
	Title string
	// Colored picks a pass/fail coloured style; leave it off when the
	// output is not a terminal.
	Colored bool
}

// WriteTable renders one row per scenario grouped by suite, with totals in
// the footer.
func WriteTable(w io.Writer, run *RunResult, opts TableOptions) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if opts.Title != "" {
		t.SetTitle(opts.Title)
	}

	t.AppendHeader(table.Row{"Suite", "Scenario", "Duration", "Status", "Failure"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Suite", AutoMerge: true},
		{Name: "Scenario", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Failure", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, s := range run.Suites {
		for _, c := range s.Cases {
			failure := ""
			if c.Failure != nil {
				failure = c.Failure.Type + ": " + c.Failure.Message
			}
			t.AppendRow(table.Row{s.Name, c.Name, formatDuration(c.Duration), statusText(c.Status), failure})
		}
		t.AppendSeparator()
	}

	tot := run.Totals()
	overall := "PASS"
	switch {
	case !run.Passed():
		overall = "FAIL"
	case tot.Skipped > 0:
		overall = "SKIP"
	}
	if opts.Colored {
		switch overall {
		case "FAIL":
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		case "SKIP":
			t.SetStyle(table.StyleColoredBlackOnYellowWhite)
		default:
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		}
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d tests, %d passed, %d failed, %d errors, %d skipped",
			tot.Tests, tot.Passed, tot.Failures, tot.Errors, tot.Skipped),
		formatDuration(run.Duration),
		overall,
		"",
	})
	t.Render()
}
