package bridge

import (
	"context"
	"errors"
)

var (
	ErrElementNotFound = errors.New("element not found")
	ErrUnknownAlias    = errors.New("unknown stub alias")
)

// BrowserAPI abstracts the browser so the scenario runner can be tested
// without Chrome.
type BrowserAPI interface {
	NewPage(ctx context.Context) (PageAPI, error)
}

// PageAPI is a single browser tab. Every blocking call is bounded by ctx.
type PageAPI interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)

	Clear(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error

	Text(ctx context.Context, selector string) (string, error)
	Value(ctx context.Context, selector string) (string, error)
	ChildCount(ctx context.Context, selector string) (int, error)

	Stub(ctx context.Context, s Stub) error
	WaitForRequest(ctx context.Context, alias string) error

	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Stub answers requests matching Method and URL with Body instead of
// letting them reach the network.
type Stub struct {
	Method      string
	URL         string
	Body        []byte
	Status      int
	ContentType string
	Alias       string
}
