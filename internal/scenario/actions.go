package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/bridge"
)

const (
	ActionVisit          = "visit"
	ActionClear          = "clear"
	ActionType           = "type"
	ActionClick          = "click"
	ActionStub           = "stub"
	ActionWaitForRequest = "waitForRequest"
	ActionAssertText     = "assertText"
	ActionAssertContains = "assertContains"
	ActionAssertValue    = "assertValue"
	ActionAssertCount    = "assertCount"
	ActionAssertTitle    = "assertTitle"
	ActionScreenshot     = "captureScreenshot"
	ActionRequest        = "request"
	ActionAssertStatus   = "assertStatus"
	ActionAssertBody     = "assertBody"
)

const (
	pollInterval = 50 * time.Millisecond

	// maxResponseBody caps how much of a backend response is kept.
	maxResponseBody = 1 << 20
)

func isAPIAction(action string) bool {
	switch action {
	case ActionRequest, ActionAssertStatus, ActionAssertBody:
		return true
	}
	return false
}

// ActionFunc runs one step. ctx carries the step's timeout.
type ActionFunc func(ctx context.Context, ex *execution, st Step) error

// execution is the per-scenario state threaded through the steps. page is
// nil for api suites.
type execution struct {
	page     bridge.PageAPI
	suite    *Suite
	scenario *Scenario
	shots    []string
	response *response
}

// response is the last backend reply seen by a request step.
type response struct {
	method string
	url    string
	status int
	body   string
}

func (ex *execution) tabID() string {
	if ex.page == nil {
		return ""
	}
	return ex.page.ID()
}

func validateStep(st Step, fixtures *FixtureStore) error {
	need := func(field, v string) error {
		if v == "" {
			return fmt.Errorf("%s: %s is required", st.Action, field)
		}
		return nil
	}
	switch st.Action {
	case ActionVisit, ActionScreenshot:
		return nil
	case ActionClear:
		return need("selector", st.Selector)
	case ActionType:
		if err := need("selector", st.Selector); err != nil {
			return err
		}
		return need("text", st.Text)
	case ActionClick:
		if st.Times < 0 {
			return fmt.Errorf("click: times must not be negative")
		}
		return need("selector", st.Selector)
	case ActionStub:
		if err := need("url", st.URL); err != nil {
			return err
		}
		if err := need("alias", st.Alias); err != nil {
			return err
		}
		if err := need("fixture", st.Fixture); err != nil {
			return err
		}
		if fixtures != nil {
			if _, err := fixtures.Load(st.Fixture); err != nil {
				return err
			}
		}
		return nil
	case ActionWaitForRequest:
		return need("alias", st.Alias)
	case ActionAssertText, ActionAssertContains, ActionAssertValue:
		if err := need("selector", st.Selector); err != nil {
			return err
		}
		if st.Expect == nil {
			return fmt.Errorf("%s: expect is required", st.Action)
		}
		return nil
	case ActionAssertCount:
		if err := need("selector", st.Selector); err != nil {
			return err
		}
		if st.Count == nil || *st.Count < 0 {
			return fmt.Errorf("assertCount: a non-negative count is required")
		}
		return nil
	case ActionAssertTitle:
		if st.Expect == nil {
			return fmt.Errorf("assertTitle: expect is required")
		}
		return nil
	case ActionRequest:
		if st.Method != "" && !validMethod(st.Method) {
			return fmt.Errorf("request: unsupported method %q", st.Method)
		}
		return need("url", st.URL)
	case ActionAssertStatus:
		if st.Status < 100 || st.Status > 599 {
			return fmt.Errorf("assertStatus: a status between 100 and 599 is required")
		}
		return nil
	case ActionAssertBody:
		if st.Expect == nil {
			return fmt.Errorf("assertBody: expect is required")
		}
		return nil
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
}

func validMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func (r *Runner) initActionRegistry() {
	r.actions = map[string]ActionFunc{
		ActionVisit: func(ctx context.Context, ex *execution, st Step) error {
			u, err := r.Config.ResolveURL(st.URL)
			if err != nil {
				return err
			}
			if err := ex.page.Navigate(ctx, u); err != nil {
				if isDeadline(ctx, err) {
					return timedOut(st.Action, "", r.Config.PageLoadTimeout, "page load of "+u+" never finished")
				}
				return fmt.Errorf("visit %s: %w", u, err)
			}
			return nil
		},
		ActionClear: func(ctx context.Context, ex *execution, st Step) error {
			return r.elementErr(ctx, st, ex.page.Clear(ctx, st.Selector))
		},
		ActionType: func(ctx context.Context, ex *execution, st Step) error {
			return r.elementErr(ctx, st, ex.page.Type(ctx, st.Selector, st.Text))
		},
		ActionClick: func(ctx context.Context, ex *execution, st Step) error {
			for i := 0; i < max(st.Times, 1); i++ {
				if err := ex.page.Click(ctx, st.Selector); err != nil {
					return r.elementErr(ctx, st, err)
				}
			}
			return nil
		},
		ActionStub: func(ctx context.Context, ex *execution, st Step) error {
			body, err := r.Fixtures.Load(st.Fixture)
			if err != nil {
				return err
			}
			return ex.page.Stub(ctx, bridge.Stub{
				Method:      st.Method,
				URL:         st.URL,
				Body:        body,
				Status:      st.Status,
				ContentType: st.ContentType,
				Alias:       st.Alias,
			})
		},
		ActionWaitForRequest: func(ctx context.Context, ex *execution, st Step) error {
			if err := ex.page.WaitForRequest(ctx, st.Alias); err != nil {
				if isDeadline(ctx, err) {
					return timedOut(st.Action, "", r.Config.CommandTimeout,
						fmt.Sprintf("waiting for a request to the route @%s, but no request ever occurred", st.Alias))
				}
				return err
			}
			return nil
		},
		ActionAssertText: func(ctx context.Context, ex *execution, st Step) error {
			want := *st.Expect
			return r.eventually(ctx, st, want, ex.page.Text, func(got string) bool { return got == want },
				func(got string) string {
					return fmt.Sprintf("expected <%s> to have text '%s', but the text was '%s'", st.Selector, want, got)
				})
		},
		ActionAssertContains: func(ctx context.Context, ex *execution, st Step) error {
			want := *st.Expect
			return r.eventually(ctx, st, want, ex.page.Text, func(got string) bool { return strings.Contains(got, want) },
				func(got string) string {
					return fmt.Sprintf("expected <%s> to contain '%s', but the text was '%s'", st.Selector, want, got)
				})
		},
		ActionAssertValue: func(ctx context.Context, ex *execution, st Step) error {
			want := *st.Expect
			return r.eventually(ctx, st, want, ex.page.Value, func(got string) bool { return got == want },
				func(got string) string {
					return fmt.Sprintf("expected <%s> to have value '%s', but the value was '%s'", st.Selector, want, got)
				})
		},
		ActionAssertCount: func(ctx context.Context, ex *execution, st Step) error {
			want := strconv.Itoa(*st.Count)
			count := func(ctx context.Context, sel string) (string, error) {
				n, err := ex.page.ChildCount(ctx, sel)
				if err != nil {
					return "", err
				}
				return strconv.Itoa(n), nil
			}
			return r.eventually(ctx, st, want, count, func(got string) bool { return got == want },
				func(got string) string {
					return fmt.Sprintf("expected <%s> to have %s children, but it had %s", st.Selector, want, got)
				})
		},
		ActionAssertTitle: func(ctx context.Context, ex *execution, st Step) error {
			want := *st.Expect
			title := func(ctx context.Context, _ string) (string, error) { return ex.page.Title(ctx) }
			return r.eventually(ctx, st, want, title, func(got string) bool { return strings.Contains(got, want) },
				func(got string) string {
					return fmt.Sprintf("expected '%s' to include '%s'", got, want)
				})
		},
		ActionRequest: func(ctx context.Context, ex *execution, st Step) error {
			u, err := r.Config.ResolveAPIURL(st.URL)
			if err != nil {
				return err
			}
			method := http.MethodGet
			if st.Method != "" {
				method = strings.ToUpper(st.Method)
			}
			req, err := http.NewRequestWithContext(ctx, method, u, nil)
			if err != nil {
				return fmt.Errorf("request %s: %w", u, err)
			}
			resp, err := r.HTTP.Do(req)
			if err != nil {
				if isDeadline(ctx, err) {
					return timedOut(st.Action, "", r.Config.CommandTimeout,
						fmt.Sprintf("%s %s never responded", method, u))
				}
				return fmt.Errorf("%s %s: %w", method, u, err)
			}
			defer func() { _ = resp.Body.Close() }()
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
			if err != nil {
				if isDeadline(ctx, err) {
					return timedOut(st.Action, "", r.Config.CommandTimeout,
						fmt.Sprintf("%s %s never finished its response", method, u))
				}
				return fmt.Errorf("%s %s: read body: %w", method, u, err)
			}
			ex.response = &response{method: method, url: u, status: resp.StatusCode, body: string(body)}
			return nil
		},
		ActionAssertStatus: func(_ context.Context, ex *execution, st Step) error {
			if ex.response == nil {
				return fmt.Errorf("assertStatus: no request was made")
			}
			if got := ex.response.status; got != st.Status {
				return &AssertionError{
					Expected: strconv.Itoa(st.Status),
					Actual:   strconv.Itoa(got),
					Message: fmt.Sprintf("expected %s %s to respond with status %d, but it was %d",
						ex.response.method, ex.response.url, st.Status, got),
				}
			}
			return nil
		},
		ActionAssertBody: func(_ context.Context, ex *execution, st Step) error {
			if ex.response == nil {
				return fmt.Errorf("assertBody: no request was made")
			}
			want := *st.Expect
			if got := strings.TrimRight(ex.response.body, "\r\n"); got != want {
				return &AssertionError{
					Expected: want,
					Actual:   got,
					Message: fmt.Sprintf("expected %s %s to respond with '%s', but the body was '%s'",
						ex.response.method, ex.response.url, want, got),
				}
			}
			return nil
		},
		ActionScreenshot: func(ctx context.Context, ex *execution, st Step) error {
			if r.Screenshots == nil {
				return nil
			}
			data, err := ex.page.Screenshot(ctx)
			if err != nil {
				return err
			}
			p, err := r.Screenshots.Save(ex.suite.File, ex.suite.Name, ex.shotName(st.Name), "", data)
			if err != nil {
				return err
			}
			ex.shots = append(ex.shots, p)
			return nil
		},
	}
}

// shotName numbers repeated screenshots of the same scenario " (1)", " (2)"...
func (ex *execution) shotName(custom string) string {
	if custom != "" {
		return custom
	}
	if n := len(ex.shots); n > 0 {
		return fmt.Sprintf("%s (%d)", ex.scenario.Name, n)
	}
	return ex.scenario.Name
}

// isDeadline reports whether err is the step's own timeout rather than the
// whole run being cancelled.
func isDeadline(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func (r *Runner) elementErr(ctx context.Context, st Step, err error) error {
	if err == nil {
		return nil
	}
	if isDeadline(ctx, err) {
		return timedOut(st.Action, st.Selector, r.timeoutFor(st),
			fmt.Sprintf("Expected to find element: %s, but never found it.", st.Selector))
	}
	return fmt.Errorf("%s: %w", st, err)
}

// eventually polls probe until accept holds or ctx expires. A value that
// was observed but never accepted is an AssertionError; an element that was
// never found is a TimeoutError.
func (r *Runner) eventually(
	ctx context.Context,
	st Step,
	want string,
	probe func(ctx context.Context, selector string) (string, error),
	accept func(got string) bool,
	describe func(got string) string,
) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last string
	observed := false
	for {
		got, err := probe(ctx, st.Selector)
		if err == nil {
			if accept(got) {
				return nil
			}
			last, observed = got, true
		}

		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ctx.Err()
			}
			prefix := fmt.Sprintf("Timed out retrying after %dms: ", r.timeoutFor(st).Milliseconds())
			if !observed {
				what := fmt.Sprintf("Expected to find element: %s, but never found it.", st.Selector)
				if st.Selector == "" {
					what = describe("")
				}
				return &TimeoutError{Action: st.Action, Selector: st.Selector, Timeout: r.timeoutFor(st), Message: prefix + what}
			}
			return &AssertionError{
				Selector: st.Selector,
				Expected: want,
				Actual:   last,
				Message:  prefix + describe(last),
				Retried:  true,
			}
		case <-ticker.C:
		}
	}
}
