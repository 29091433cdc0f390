// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover walks the paginated national bulletin index and lists
// the daily bulletins it links to.
package discover

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/ncov-ledger/internal/extract"
	"github.com/pdiddy/ncov-ledger/internal/fetch"
	"github.com/pdiddy/ncov-ledger/internal/page"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

const defaultMaxPages = 50

// ErrTooManyPages is returned when the walk reaches MaxPages without
// finding a stopping point.
var ErrTooManyPages = eris.New("index walk exceeded page limit")

// Crawler lists daily bulletins newest page first and returns them oldest
// first.
type Crawler struct {
	Fetcher fetch.Fetcher

	// IndexURL is page 1. PageURL is a format with one %d verb for pages
	// 2 and up.
	IndexURL string
	PageURL  string

	// Boundary is the title of the oldest bulletin in the series.
	Boundary string

	MaxPages int
	Log      *zap.Logger
}

// NewCrawler returns a Crawler for the index described by cfg.
func NewCrawler(f fetch.Fetcher, cfg types.DiscoveryConfig, log *zap.Logger) *Crawler {
	return &Crawler{
		Fetcher:  f,
		IndexURL: cfg.IndexURL,
		PageURL:  cfg.PageURL,
		Boundary: cfg.Boundary,
		MaxPages: cfg.MaxPages,
		Log:      log,
	}
}

// Discover returns the bulletin links found on the index, oldest first.
// Only links titled like a daily bulletin are kept. The walk stops after
// the first page whose last kept link is the boundary bulletin or a
// reference already in seen, so an incremental run reads one or two pages.
func (c *Crawler) Discover(ctx context.Context, seen map[string]bool) ([]page.Link, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var links []page.Link
	for n := 1; n <= maxPages; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		url := c.pageURL(n)
		doc, err := c.Fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, eris.Wrapf(err, "index page %d", n)
		}
		found, err := page.ParseIndex(doc, url)
		if err != nil {
			return nil, eris.Wrapf(err, "index page %d", n)
		}

		kept := 0
		for _, l := range found {
			if extract.MatchesTitle(l.Title) {
				links = append(links, l)
				kept++
			}
		}
		log.Debug("index page", zap.Int("page", n), zap.Int("links", len(found)), zap.Int("kept", kept))

		if len(links) == 0 {
			continue
		}
		last := links[len(links)-1]
		if last.Title == c.Boundary || seen[last.URL] {
			reverse(links)
			return links, nil
		}
	}
	return nil, eris.Wrapf(ErrTooManyPages, "%d pages", maxPages)
}

func (c *Crawler) pageURL(n int) string {
	if n == 1 {
		return c.IndexURL
	}
	return fmt.Sprintf(c.PageURL, n)
}

func reverse(links []page.Link) {
	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}
}
