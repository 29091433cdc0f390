// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/ncov-ledger/internal/httputil"
	"github.com/pdiddy/ncov-ledger/internal/secrets"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// BrowserFetcher drives a Chrome instance so that challenge scripts run
// and redirect to the real page before its HTML is read. The browser is
// launched on first use and shared by later fetches; each fetch opens and
// closes its own tab.
type BrowserFetcher struct {
	cfg   types.FetchConfig
	creds secrets.Credentials
	log   *zap.Logger

	mu      sync.Mutex
	launch  *launcher.Launcher
	browser *rod.Browser
}

// NewBrowserFetcher returns a BrowserFetcher. No browser is started until
// the first Fetch.
func NewBrowserFetcher(cfg types.FetchConfig, creds secrets.Credentials, log *zap.Logger) *BrowserFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &BrowserFetcher{cfg: cfg, creds: creds, log: log}
}

func (f *BrowserFetcher) ensureStarted() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	l := launcher.New().Headless(f.cfg.Headless)
	if f.cfg.BrowserBin != "" {
		l = l.Bin(f.cfg.BrowserBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "launching chrome")
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, eris.Wrap(err, "connecting to chrome")
	}

	f.log.Info("browser started", zap.Bool("headless", f.cfg.Headless))
	f.launch = l
	f.browser = browser
	return browser, nil
}

// Fetch opens url in a new tab, waits for the page to settle and returns
// the rendered HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	browser, err := f.ensureStarted()
	if err != nil {
		return nil, err
	}

	var out string
	err = httputil.Retry(ctx, f.cfg.Attempts, f.cfg.RetryWait, func(ctx context.Context) error {
		html, err := f.render(ctx, browser, url)
		if err != nil {
			f.log.Warn("render failed", zap.String("url", url), zap.Error(err))
			return err
		}
		out = html
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetching %s", url)
	}
	f.log.Debug("fetched", zap.String("url", url), zap.Int("bytes", len(out)))
	return []byte(out), nil
}

func (f *BrowserFetcher) render(ctx context.Context, browser *rod.Browser, url string) (string, error) {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", eris.Wrap(err, "opening tab")
	}
	defer page.Close()

	if f.creds.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.creds.UserAgent}); err != nil {
			return "", eris.Wrap(err, "setting user agent")
		}
	}

	p := page.Context(ctx)
	if f.cfg.Timeout > 0 {
		p = p.Timeout(f.cfg.Timeout)
	}
	if err := p.Navigate(url); err != nil {
		return "", eris.Wrap(err, "navigating")
	}
	if err := p.WaitLoad(); err != nil {
		return "", eris.Wrap(err, "waiting for load")
	}

	if f.cfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.cfg.SettleDelay):
		}
	}

	html, err := p.HTML()
	if err != nil {
		return "", eris.Wrap(err, "reading html")
	}
	return html, nil
}

// Close shuts the browser down if it was started.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.launch.Cleanup()
	f.browser, f.launch = nil, nil
	return err
}
