package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/config"
)

type TabEntry struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

type Bridge struct {
	AllocCtx      context.Context
	AllocCancel   context.CancelFunc
	BrowserCtx    context.Context
	BrowserCancel context.CancelFunc
	Config        *config.RuntimeConfig
	*TabManager

	closeOnce sync.Once
}

func New(allocCtx context.Context, allocCancel context.CancelFunc, browserCtx context.Context, browserCancel context.CancelFunc, cfg *config.RuntimeConfig) *Bridge {
	b := &Bridge{
		AllocCtx:      allocCtx,
		AllocCancel:   allocCancel,
		BrowserCtx:    browserCtx,
		BrowserCancel: browserCancel,
		Config:        cfg,
	}
	if browserCtx != nil {
		b.TabManager = NewTabManager(browserCtx)
	}
	return b
}

// NewPage opens a fresh tab. The caller owns it and must Close it.
func (b *Bridge) NewPage(ctx context.Context) (PageAPI, error) {
	if b.TabManager == nil {
		return nil, fmt.Errorf("no browser connection")
	}
	id, tabCtx, _, err := b.CreateTab(ctx, "about:blank")
	if err != nil {
		return nil, err
	}
	if b.Config != nil && b.Config.DisableAnimations {
		if err := freezeAnimations(tabCtx); err != nil {
			slog.Warn("disable animations failed", "tab", id, "err", err)
		}
	}
	slog.Debug("page opened", "tab", id)
	return newPage(b.TabManager, id, tabCtx), nil
}

// Close closes every tab still open and shuts the browser down.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		if b.TabManager != nil {
			if n := b.OpenTabs(); n > 0 {
				slog.Debug("closing leftover tabs", "count", n)
			}
			b.CloseAll()
		}
		if b.BrowserCancel != nil {
			b.BrowserCancel()
		}
		if b.AllocCancel != nil {
			b.AllocCancel()
		}
		slog.Info("chrome closed")
	})
}
