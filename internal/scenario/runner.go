package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/bridge"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/config"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/report"
)

// failureShotTimeout bounds the screenshot taken after a failed step.
const failureShotTimeout = 5 * time.Second

// Runner executes suites one scenario at a time, each in a fresh tab.
type Runner struct {
	Browser     bridge.BrowserAPI
	Config      *config.RuntimeConfig
	Fixtures    *FixtureStore
	Screenshots *Screenshots
	// HTTP sends the requests of api steps. Each request is bounded by the
	// step's context.
	HTTP *http.Client

	// Grep keeps only scenarios whose "<suite> <scenario>" title contains it.
	Grep string

	actions map[string]ActionFunc
}

func NewRunner(b bridge.BrowserAPI, cfg *config.RuntimeConfig, fixtures *FixtureStore) *Runner {
	r := &Runner{
		Browser:  b,
		Config:   cfg,
		Fixtures: fixtures,
		HTTP:     &http.Client{},
	}
	if cfg.ScreenshotsFolder != "" {
		r.Screenshots = &Screenshots{Dir: cfg.ScreenshotsFolder, Root: SpecRoot(cfg.SpecPattern)}
	}
	r.initActionRegistry()
	return r
}

type plannedStep struct {
	label string
	step  Step
}

// plan is the full step list of one scenario: the implicit visit of the
// base URL (browser suites only), the suite prelude and the scenario's own
// steps.
func plan(s *Suite, sc *Scenario) []plannedStep {
	out := make([]plannedStep, 0, 1+len(s.BeforeEach)+len(sc.Steps))
	if s.NeedsBrowser() {
		out = append(out, plannedStep{label: "visit base URL", step: Step{Action: ActionVisit}})
	}
	for i, st := range s.BeforeEach {
		out = append(out, plannedStep{label: fmt.Sprintf("beforeEach step %d", i+1), step: st})
	}
	for i, st := range sc.Steps {
		out = append(out, plannedStep{label: fmt.Sprintf("step %d", i+1), step: st})
	}
	return out
}

func (r *Runner) timeoutFor(st Step) time.Duration {
	switch {
	case st.Action == ActionVisit:
		return r.Config.PageLoadTimeout
	case st.Action == ActionClick && st.Times > 1:
		return r.Config.CommandTimeout * time.Duration(st.Times)
	}
	return r.Config.CommandTimeout
}

func (r *Runner) selected(s *Suite, sc *Scenario) bool {
	if r.Grep == "" {
		return true
	}
	return strings.Contains(s.Name+" "+sc.Name, r.Grep)
}

// Run executes every selected scenario in order. When ctx is cancelled the
// scenario in flight is recorded as an error, the rest are not started and
// the partial result is returned together with ctx.Err().
func (r *Runner) Run(ctx context.Context, suites []*Suite) (*report.RunResult, error) {
	run := &report.RunResult{
		ID:      uuid.NewString(),
		BaseURL: r.Config.BaseURL,
		Start:   time.Now(),
	}
	slog.Info("run started", "id", run.ID, "baseUrl", run.BaseURL, "suites", len(suites))

	for _, s := range suites {
		sr := &report.SuiteResult{Name: s.Name, File: s.File, Start: time.Now()}
		if r.Screenshots != nil {
			if err := r.Screenshots.Reset(s.File); err != nil {
				slog.Warn("screenshot cleanup failed", "suite", s.Name, "err", err)
			}
		}

		for i := range s.Scenarios {
			sc := &s.Scenarios[i]
			if !r.selected(s, sc) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			cr := r.runScenario(ctx, s, sc)
			sr.Cases = append(sr.Cases, cr)
			logCase(cr)
		}

		sr.Duration = time.Since(sr.Start)
		if len(sr.Cases) > 0 {
			run.Suites = append(run.Suites, sr)
		}
		if ctx.Err() != nil {
			break
		}
	}

	run.Duration = time.Since(run.Start)
	t := run.Totals()
	slog.Info("run finished", "id", run.ID, "tests", t.Tests, "passed", t.Passed,
		"failures", t.Failures, "errors", t.Errors, "skipped", t.Skipped, "duration", run.Duration)
	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("run interrupted: %w", err)
	}
	return run, nil
}

func logCase(cr report.CaseResult) {
	attrs := []any{"suite", cr.Suite, "scenario", cr.Name, "status", cr.Status, "duration", cr.Duration}
	if cr.Failure == nil {
		slog.Info("scenario", attrs...)
		return
	}
	attrs = append(attrs, "step", cr.Failure.Step, "type", cr.Failure.Type, "msg", cr.Failure.Message)
	slog.Warn("scenario", attrs...)
}

func (r *Runner) runScenario(ctx context.Context, s *Suite, sc *Scenario) report.CaseResult {
	start := time.Now()
	cr := report.CaseResult{Suite: s.Name, Name: sc.Name}
	if sc.Skip {
		cr.Status = report.StatusSkip
		return cr
	}

	ex := &execution{suite: s, scenario: sc}
	if s.NeedsBrowser() {
		page, err := r.Browser.NewPage(ctx)
		if err != nil {
			cr.Status = report.StatusError
			cr.Failure = &report.Failure{Type: report.FailureError, Step: "open tab", Message: err.Error()}
			cr.Duration = time.Since(start)
			return cr
		}
		defer func() {
			if err := page.Close(); err != nil {
				slog.Debug("tab close failed", "tab", page.ID(), "err", err)
			}
		}()
		ex.page = page
	}

	for _, ps := range plan(s, sc) {
		err := r.runStep(ctx, ex, ps.step)
		if err == nil {
			continue
		}
		cr.Failure = toFailure(ps.label, ps.step, err)
		cr.Status = report.StatusFail
		if cr.Failure.Type == report.FailureError {
			cr.Status = report.StatusError
		}
		if r.Config.ScreenshotOnFailure && ctx.Err() == nil {
			r.captureFailure(ctx, ex)
		}
		break
	}
	if cr.Status == "" {
		cr.Status = report.StatusPass
	}
	cr.Screenshots = ex.shots
	cr.Duration = time.Since(start)
	return cr
}

func (r *Runner) runStep(ctx context.Context, ex *execution, st Step) error {
	fn, ok := r.actions[st.Action]
	if !ok {
		return fmt.Errorf("unknown action %q", st.Action)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stepCtx, cancel := context.WithTimeout(ctx, r.timeoutFor(st))
	defer cancel()

	slog.Debug("step", "tab", ex.tabID(), "action", st.String())
	err := fn(stepCtx, ex, st)
	if err != nil && ctx.Err() != nil {
		// The run was cancelled, not the step.
		return fmt.Errorf("interrupted during %s: %w", st, ctx.Err())
	}
	return err
}

func (r *Runner) captureFailure(ctx context.Context, ex *execution) {
	if r.Screenshots == nil || ex.page == nil {
		return
	}
	shotCtx, cancel := context.WithTimeout(ctx, failureShotTimeout)
	defer cancel()
	data, err := ex.page.Screenshot(shotCtx)
	if err != nil {
		slog.Warn("failure screenshot", "scenario", ex.scenario.Name, "err", err)
		return
	}
	p, err := r.Screenshots.Save(ex.suite.File, ex.suite.Name, ex.scenario.Name, "(failed)", data)
	if err != nil {
		slog.Warn("failure screenshot", "scenario", ex.scenario.Name, "err", err)
		return
	}
	ex.shots = append(ex.shots, p)
}
