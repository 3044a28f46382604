package bridge

import (
	"context"

	"github.com/chromedp/chromedp"
)

// Page is one scenario's tab. Calls take the caller's deadline and run it
// against the tab's chromedp context.
type Page struct {
	id  string
	ctx context.Context
	tm  *TabManager

	stubs *interceptor
}

func newPage(tm *TabManager, id string, ctx context.Context) *Page {
	return &Page{
		id:    id,
		ctx:   ctx,
		tm:    tm,
		stubs: newInterceptor(),
	}
}

func (p *Page) ID() string { return p.id }

// bound derives a tab context that inherits ctx's deadline and is
// cancelled along with it.
func (p *Page) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	var tCtx context.Context
	var cancel context.CancelFunc
	if dl, ok := ctx.Deadline(); ok {
		tCtx, cancel = context.WithDeadline(p.ctx, dl)
	} else {
		tCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return tCtx, func() {
		stop()
		cancel()
	}
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	tCtx, cancel := p.bound(ctx)
	defer cancel()
	if err := chromedp.Run(tCtx, actions...); err != nil {
		if ctxErr := tCtx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	tCtx, cancel := p.bound(ctx)
	defer cancel()
	return NavigatePage(tCtx, url)
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *Page) Clear(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Clear(selector, chromedp.ByQuery))
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.run(ctx, chromedp.TextContent(selector, &text, chromedp.ByQuery))
	return text, err
}

func (p *Page) Value(ctx context.Context, selector string) (string, error) {
	var value string
	err := p.run(ctx, chromedp.Value(selector, &value, chromedp.ByQuery))
	return value, err
}

func (p *Page) ChildCount(ctx context.Context, selector string) (int, error) {
	tCtx, cancel := p.bound(ctx)
	defer cancel()
	return ChildCount(tCtx, selector)
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	tCtx, cancel := p.bound(ctx)
	defer cancel()
	return CaptureScreenshot(tCtx)
}

func (p *Page) Stub(ctx context.Context, s Stub) error {
	tCtx, cancel := p.bound(ctx)
	defer cancel()
	return p.stubs.register(tCtx, p.ctx, s)
}

func (p *Page) WaitForRequest(ctx context.Context, alias string) error {
	return p.stubs.wait(ctx, alias)
}

// Close closes the tab. Stubs registered on it die with it.
func (p *Page) Close() error {
	return p.tm.CloseTab(p.id)
}
