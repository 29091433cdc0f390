// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/pdiddy/ncov-ledger/internal/httputil"
	"github.com/pdiddy/ncov-ledger/internal/secrets"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// HTTPFetcher fetches pages with a plain HTTP client. Bulletin pages are
// often GBK encoded; the body is decoded using the Content-Type header or,
// failing that, the page's meta charset.
type HTTPFetcher struct {
	client    *http.Client
	header    http.Header
	attempts  int
	retryWait time.Duration
	log       *zap.Logger
}

// NewHTTPFetcher builds an HTTPFetcher. The credentials' user agent takes
// precedence over cfg.UserAgent because it must match the cookie.
func NewHTTPFetcher(cfg types.FetchConfig, creds secrets.Credentials, log *zap.Logger) *HTTPFetcher {
	if log == nil {
		log = zap.NewNop()
	}

	header := http.Header{}
	ua := cfg.UserAgent
	if creds.UserAgent != "" {
		ua = creds.UserAgent
	}
	if ua != "" {
		header.Set("User-Agent", ua)
	}
	if creds.Cookie != "" {
		header.Set("Cookie", creds.Cookie)
	}

	return &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		header:    header,
		attempts:  cfg.Attempts,
		retryWait: cfg.RetryWait,
		log:       log,
	}
}

// Fetch retrieves url and returns its UTF-8 body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var out []byte
	attempt := 0
	err := httputil.Retry(ctx, f.attempts, f.retryWait, func(ctx context.Context) error {
		attempt++
		body, contentType, err := httputil.Get(ctx, f.client, url, f.header)
		if err != nil {
			f.log.Warn("fetch failed", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		out, err = decode(body, contentType)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetching %s", url)
	}
	f.log.Debug("fetched", zap.String("url", url), zap.Int("bytes", len(out)))
	return out, nil
}

// Close is a no-op; HTTPFetcher holds no resources.
func (f *HTTPFetcher) Close() error { return nil }

func decode(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, eris.Wrap(err, "detecting charset")
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "decoding body")
	}
	return out, nil
}
