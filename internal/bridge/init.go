package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/config"
)

const (
	chromeStartTimeout = 15 * time.Second
	windowWidth        = 1280
	windowHeight       = 720
)

// InitChrome launches (or connects to) Chrome and returns a Bridge whose
// browser context is ready for new tabs.
func InitChrome(ctx context.Context, cfg *config.RuntimeConfig) (*Bridge, error) {
	allocCtx, allocCancel, err := setupAllocator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	browserCtx, browserCancel, err := startChrome(allocCtx)
	if err != nil {
		allocCancel()
		slog.Error("chrome initialization failed", "headless", cfg.Headless, "err", err)
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	slog.Info("chrome initialized", "headless", cfg.Headless, "remote", cfg.CdpURL != "")
	return New(allocCtx, allocCancel, browserCtx, browserCancel, cfg), nil
}

func setupAllocator(ctx context.Context, cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, error) {
	if cfg.CdpURL != "" {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		wsURL, err := ProbeDevTools(probeCtx, cfg.CdpURL)
		if err != nil {
			return nil, nil, fmt.Errorf("devtools endpoint unreachable: %w", err)
		}
		slog.Info("connecting to Chrome", "url", wsURL)
		allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, wsURL)
		return allocCtx, allocCancel, nil
	}

	slog.Info("launching Chrome", "headless", cfg.Headless, "binary", cfg.ChromeBinary)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, buildChromeOpts(cfg)...)
	return allocCtx, allocCancel, nil
}

func buildChromeOpts(cfg *config.RuntimeConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.WindowSize(windowWidth, windowHeight),
	)

	if cfg.ChromeBinary != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinary))
	}
	if cfg.ChromeExtraFlags != "" {
		for _, f := range strings.Fields(cfg.ChromeExtraFlags) {
			if k, v, ok := strings.Cut(f, "="); ok {
				opts = append(opts, chromedp.Flag(strings.TrimLeft(k, "-"), v))
			} else {
				opts = append(opts, chromedp.Flag(strings.TrimLeft(f, "-"), true))
			}
		}
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	return opts
}

func startChrome(allocCtx context.Context) (context.Context, context.CancelFunc, error) {
	bCtx, bCancel := chromedp.NewContext(allocCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(bCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			bCancel()
			return nil, nil, err
		}
		return bCtx, bCancel, nil
	case <-time.After(chromeStartTimeout):
		bCancel()
		return nil, nil, fmt.Errorf("timed out after %s", chromeStartTimeout)
	}
}
