package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// NavigatePage navigates with raw CDP Page.navigate and waits until the main
// frame has committed the new document and its readyState is interactive or
// complete.
func NavigatePage(ctx context.Context, url string) error {
	var loaderID cdp.LoaderID
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, lid, errText, _, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("navigate %s: %s", url, errText)
			}
			loaderID = lid
			return nil
		}),
	)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ok, err := documentReady(ctx, loaderID); err == nil && ok {
				return nil
			}
		}
	}
}

// committed reports whether the frame's current loader is the one the
// navigation started. Same-document navigations have no loader.
func committed(current, want cdp.LoaderID) bool {
	return want == "" || current == want
}

func documentReady(ctx context.Context, loaderID cdp.LoaderID) (bool, error) {
	var ready bool
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			if !committed(tree.Frame.LoaderID, loaderID) {
				return nil
			}
			var state string
			if err := chromedp.Evaluate("document.readyState", &state).Do(ctx); err != nil {
				return err
			}
			ready = state == "interactive" || state == "complete"
			return nil
		}),
	)
	return ready, err
}

func childCountJS(selector string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%q); return el ? el.children.length : -1; })()`, selector)
}

// ChildCount returns the number of element children of the first node
// matching selector.
func ChildCount(ctx context.Context, selector string) (int, error) {
	var n int
	if err := chromedp.Run(ctx, chromedp.Evaluate(childCountJS(selector), &n)); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return n, nil
}

// CaptureScreenshot grabs the visible viewport as PNG.
func CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}
