package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cdp "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

type TabManager struct {
	browserCtx context.Context
	tabs       map[string]*TabEntry
	mu         sync.RWMutex
}

func NewTabManager(browserCtx context.Context) *TabManager {
	return &TabManager{
		browserCtx: browserCtx,
		tabs:       make(map[string]*TabEntry),
	}
}

func (tm *TabManager) CreateTab(ctx context.Context, url string) (string, context.Context, context.CancelFunc, error) {
	if tm.browserCtx == nil {
		return "", nil, nil, fmt.Errorf("no browser context available")
	}

	navURL := "about:blank"
	if url != "" {
		navURL = url
	}

	var targetID target.ID
	createCtx, createCancel := context.WithTimeout(tm.browserCtx, 10*time.Second)
	stop := context.AfterFunc(ctx, createCancel)
	err := chromedp.Run(createCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			targetID, err = target.CreateTarget(navURL).Do(ctx)
			return err
		}),
	)
	stop()
	createCancel()
	if err != nil {
		return "", nil, nil, fmt.Errorf("create target: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(tm.browserCtx,
		chromedp.WithTargetID(targetID),
	)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return "", nil, nil, fmt.Errorf("attach target %s: %w", targetID, err)
	}

	id := string(targetID)
	tm.mu.Lock()
	tm.tabs[id] = &TabEntry{Ctx: tabCtx, Cancel: cancel}
	tm.mu.Unlock()

	return id, tabCtx, cancel, nil
}

func (tm *TabManager) CloseTab(tabID string) error {
	tm.mu.Lock()
	entry, tracked := tm.tabs[tabID]
	delete(tm.tabs, tabID)
	tm.mu.Unlock()

	if tracked && entry.Cancel != nil {
		entry.Cancel()
	}

	closeCtx, closeCancel := context.WithTimeout(tm.browserCtx, 5*time.Second)
	defer closeCancel()

	c := chromedp.FromContext(closeCtx)
	if c == nil || c.Browser == nil {
		if !tracked {
			return fmt.Errorf("tab %s not found", tabID)
		}
		return nil
	}
	if err := target.CloseTarget(target.ID(tabID)).Do(cdp.WithExecutor(closeCtx, c.Browser)); err != nil {
		if !tracked {
			return fmt.Errorf("tab %s not found", tabID)
		}
		slog.Debug("close target CDP", "tabId", tabID, "err", err)
	}
	return nil
}

// CloseAll closes every tab opened through the manager.
func (tm *TabManager) CloseAll() {
	tm.mu.RLock()
	ids := make([]string, 0, len(tm.tabs))
	for id := range tm.tabs {
		ids = append(ids, id)
	}
	tm.mu.RUnlock()

	for _, id := range ids {
		if err := tm.CloseTab(id); err != nil {
			slog.Warn("close tab", "tabId", id, "err", err)
		}
	}
}

func (tm *TabManager) OpenTabs() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tabs)
}
