package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
)

const stubHitBuffer = 64

type route struct {
	Stub
	hits chan struct{}
}

func (r *route) matches(method, rawURL string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return MatchURL(r.URL, rawURL)
}

type interceptor struct {
	mu      sync.Mutex
	enabled bool
	routes  []*route
}

func newInterceptor() *interceptor {
	return &interceptor{}
}

// register adds s to the tab's routes, enabling the Fetch domain on first
// use. callCtx bounds the enable call; tabCtx is the tab's own context and
// outlives it.
func (in *interceptor) register(callCtx, tabCtx context.Context, s Stub) error {
	if s.URL == "" {
		return fmt.Errorf("stub url required")
	}
	if s.Status == 0 {
		s.Status = http.StatusOK
	}
	if s.ContentType == "" {
		s.ContentType = "text/plain; charset=utf-8"
	}

	in.mu.Lock()
	enabled := in.enabled
	in.mu.Unlock()

	if !enabled {
		chromedp.ListenTarget(tabCtx, func(ev any) {
			if e, ok := ev.(*fetch.EventRequestPaused); ok {
				go in.handlePaused(tabCtx, e)
			}
		})
		err := chromedp.Run(callCtx, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
		}))
		if err != nil {
			return fmt.Errorf("enable request interception: %w", err)
		}
		in.mu.Lock()
		in.enabled = true
		in.mu.Unlock()
	}

	in.mu.Lock()
	in.routes = append(in.routes, &route{Stub: s, hits: make(chan struct{}, stubHitBuffer)})
	in.mu.Unlock()

	slog.Debug("stub registered", "method", s.Method, "url", s.URL, "alias", s.Alias)
	return nil
}

// match returns the most recently registered route for the request.
func (in *interceptor) match(method, rawURL string) *route {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := len(in.routes) - 1; i >= 0; i-- {
		if in.routes[i].matches(method, rawURL) {
			return in.routes[i]
		}
	}
	return nil
}

func (in *interceptor) lookup(alias string) *route {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := len(in.routes) - 1; i >= 0; i-- {
		if in.routes[i].Alias == alias {
			return in.routes[i]
		}
	}
	return nil
}

func (in *interceptor) handlePaused(tabCtx context.Context, ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(tabCtx, c.Target)

	r := in.match(ev.Request.Method, ev.Request.URL)
	if r == nil {
		if err := fetch.ContinueRequest(ev.RequestID).Do(execCtx); err != nil {
			slog.Debug("continue request", "url", ev.Request.URL, "err", err)
		}
		return
	}

	headers := []*fetch.HeaderEntry{
		{Name: "Content-Type", Value: r.ContentType},
		{Name: "Content-Length", Value: strconv.Itoa(len(r.Body))},
		{Name: "Access-Control-Allow-Origin", Value: "*"},
	}
	err := fetch.FulfillRequest(ev.RequestID, int64(r.Status)).
		WithResponseHeaders(headers).
		WithBody(base64.StdEncoding.EncodeToString(r.Body)).
		Do(execCtx)
	if err != nil {
		slog.Warn("fulfill stubbed request", "url", ev.Request.URL, "alias", r.Alias, "err", err)
		return
	}
	slog.Debug("stubbed request", "method", ev.Request.Method, "url", ev.Request.URL, "alias", r.Alias)
	r.hit()
}

func (r *route) hit() {
	select {
	case r.hits <- struct{}{}:
	default:
	}
}

// wait blocks until the aliased route answers one more request.
func (in *interceptor) wait(ctx context.Context, alias string) error {
	r := in.lookup(alias)
	if r == nil {
		return fmt.Errorf("%w: @%s", ErrUnknownAlias, alias)
	}
	select {
	case <-r.hits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MatchURL reports whether rawURL is selected by pattern. Patterns with glob
// metacharacters match any trailing run of path segments; plain patterns
// match the whole URL or a path suffix on a segment boundary.
func MatchURL(pattern, rawURL string) bool {
	if pattern == "" {
		return false
	}
	if pattern == rawURL {
		return true
	}

	if strings.Contains(pattern, "://") {
		if strings.ContainsAny(pattern, "*?[") {
			ok, _ := path.Match(pattern, rawURL)
			return ok
		}
		return strings.TrimSuffix(pattern, "/") == strings.TrimSuffix(rawURL, "/")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	target := strings.TrimPrefix(u.Path, "/")
	pat := strings.TrimPrefix(pattern, "/")

	if strings.ContainsAny(pat, "*?[") {
		segs := strings.Split(target, "/")
		for i := range segs {
			if ok, _ := path.Match(pat, strings.Join(segs[i:], "/")); ok {
				return true
			}
		}
		return false
	}
	return target == pat || strings.HasSuffix(target, "/"+pat)
}
