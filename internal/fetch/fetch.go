// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves bulletin and index pages as UTF-8 HTML.
package fetch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/ncov-ledger/internal/secrets"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// Fetcher retrieves one page. Implementations return the body decoded to
// UTF-8 and give up after their configured number of attempts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Session is a Fetcher holding resources that must be released.
type Session interface {
	Fetcher
	Close() error
}

// New returns the fetcher selected by cfg.Backend.
func New(cfg types.FetchConfig, creds secrets.Credentials, log *zap.Logger) (Session, error) {
	switch cfg.Backend {
	case types.FetchHTTP, "":
		return NewHTTPFetcher(cfg, creds, log), nil
	case types.FetchBrowser:
		return NewBrowserFetcher(cfg, creds, log), nil
	default:
		return nil, eris.Errorf("unknown fetch backend %q", cfg.Backend)
	}
}
