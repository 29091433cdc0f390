// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs bulletins through date resolution, extraction,
// reconciliation and storage. Documents are processed one at a time,
// oldest first, because provincial bulletins merge into records that the
// national run must already have created.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/ncov-ledger/internal/extract"
	"github.com/pdiddy/ncov-ledger/internal/fetch"
	"github.com/pdiddy/ncov-ledger/internal/ledger"
	"github.com/pdiddy/ncov-ledger/internal/page"
	"github.com/pdiddy/ncov-ledger/internal/reconcile"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// ErrNoPrimary is returned for a provincial bulletin whose day has no
// national record to merge into.
var ErrNoPrimary = eris.New("no national record for provincial bulletin")

// Status is the outcome of processing one document.
type Status string

const (
	StatusIngested Status = "ingested"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Report describes one processed document.
type Report struct {
	Status Status
	Ref    string
	Date   time.Time

	// Misses are indicators expected on Date but not found.
	Misses []extract.Miss

	// Reconciliation is set for provincial bulletins that were merged.
	Reconciliation *reconcile.Outcome
}

// Summary holds counts from one batch run.
type Summary struct {
	Ingested int
	Skipped  int
	Failed   int
	Misses   int
}

// Total returns the number of documents seen.
func (s Summary) Total() int {
	return s.Ingested + s.Skipped + s.Failed
}

func (s *Summary) add(r Report) {
	switch r.Status {
	case StatusIngested:
		s.Ingested++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
	s.Misses += len(r.Misses)
}

// Discoverer lists national bulletins oldest first.
type Discoverer interface {
	Discover(ctx context.Context, seen map[string]bool) ([]page.Link, error)
}

// Engine holds the collaborators of a run. All of them are passed in; the
// engine keeps no global state.
type Engine struct {
	Store   ledger.Store
	Fetcher fetch.Fetcher
	Log     *zap.Logger

	// Year is the reporting year for national titles.
	Year int

	national   *extract.Extractor
	provincial *extract.Extractor
}

// New returns an Engine using the built-in rule tables.
func New(store ledger.Store, fetcher fetch.Fetcher, log *zap.Logger, year int) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		Store:      store,
		Fetcher:    fetcher,
		Log:        log,
		Year:       year,
		national:   extract.MustNew(extract.NationalRules(), log.Named("national")),
		provincial: extract.MustNew(extract.ProvincialRules(), log.Named("provincial")),
	}
}

// ProcessNational stores the counts of one national bulletin. A title that
// carries no recognisable date is skipped with a warning, and so is a
// bulletin for a day already recorded from a different bulletin.
func (e *Engine) ProcessNational(ctx context.Context, ref, title, body string) (Report, error) {
	log := e.Log.With(zap.String("ref", ref))
	rep := Report{Ref: ref}

	on, err := extract.ResolveTitle(title, e.Year)
	if err != nil {
		log.Warn("skipping bulletin without a date in its title", zap.String("title", title), zap.Error(err))
		rep.Status = StatusSkipped
		return rep, nil
	}
	rep.Date = on.Date

	existing, err := e.Store.Get(ctx, on.Date)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return rep, err
	}
	if existing != nil && existing.SourceRef != "" && existing.SourceRef != ref {
		log.Warn("another bulletin is already recorded for this date",
			zap.String("date", on.Key),
			zap.String("recorded", existing.SourceRef),
		)
		rep.Status = StatusSkipped
		return rep, nil
	}

	res := e.national.Extract(body, on)
	rep.Misses = res.Misses

	rec := &types.Record{
		Date:        on.Date,
		Values:      res.Values,
		SourceRef:   ref,
		SourceTitle: title,
		SourceText:  body,
	}
	if err := e.Store.Upsert(ctx, rec); err != nil {
		return rep, eris.Wrapf(err, "storing national bulletin %s", on.Key)
	}

	log.Info("ingested national bulletin",
		zap.String("date", on.Key),
		zap.Int("values", len(res.Values)),
		zap.Int("misses", len(res.Misses)),
	)
	rep.Status = StatusIngested
	return rep, nil
}

// ProcessProvincial merges one provincial bulletin into the national
// record of the same day. It returns ErrNoPrimary when that record does not
// exist and a *reconcile.ContradictionError when the two sources disagree;
// in both cases nothing is written.
func (e *Engine) ProcessProvincial(ctx context.Context, ref, body string) (Report, error) {
	log := e.Log.With(zap.String("ref", ref))
	rep := Report{Ref: ref}

	on, err := extract.ResolveBody(body)
	if err != nil {
		log.Warn("skipping provincial bulletin without a date line", zap.Error(err))
		rep.Status = StatusSkipped
		return rep, nil
	}
	rep.Date = on.Date
	log = log.With(zap.String("date", on.Key))

	res := e.provincial.Extract(body, on)
	rep.Misses = res.Misses
	scraped, computed := extract.SplitComputed(extract.FoldProvincial(res.Values))

	stored, err := e.Store.Get(ctx, on.Date)
	if errors.Is(err, ledger.ErrNotFound) {
		log.Warn("no national record to merge into")
		rep.Status = StatusSkipped
		return rep, ErrNoPrimary
	}
	if err != nil {
		return rep, err
	}

	out, err := reconcile.Reconcile(stored, scraped)
	if err != nil {
		var ce *reconcile.ContradictionError
		if errors.As(err, &ce) {
			log.Error("sources disagree",
				zap.String("indicator", string(ce.Indicator)),
				zap.Int("national", ce.Stored),
				zap.Int("provincial", ce.Scraped),
			)
		}
		rep.Status = StatusFailed
		return rep, err
	}
	rep.Reconciliation = &out

	// Computed values follow from counts that were just checked, so they
	// replace rather than compete with what is stored.
	for ind, v := range computed {
		stored.Values.Set(ind, v)
	}
	stored.ProvincialRef = ref
	stored.ProvincialText = body
	if err := e.Store.Upsert(ctx, stored); err != nil {
		return rep, eris.Wrapf(err, "storing provincial bulletin %s", on.Key)
	}

	log.Info("merged provincial bulletin",
		zap.Int("filled", len(out.Filled)),
		zap.Int("agreed", len(out.Agreed)),
		zap.Int("misses", len(res.Misses)),
	)
	rep.Status = StatusIngested
	return rep, nil
}

// RunNational discovers national bulletins and processes those not yet
// recorded. A document that cannot be fetched or parsed is logged, counted
// as failed and left for the next run.
func (e *Engine) RunNational(ctx context.Context, d Discoverer) (Summary, error) {
	var summary Summary

	seen, err := e.Store.References(ctx)
	if err != nil {
		return summary, err
	}
	links, err := d.Discover(ctx, seen)
	if err != nil {
		return summary, eris.Wrap(err, "discovering bulletins")
	}
	e.Log.Info("discovered bulletins", zap.Int("count", len(links)))

	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if seen[l.URL] {
			e.Log.Debug("already recorded", zap.String("ref", l.URL))
			summary.Skipped++
			continue
		}

		doc, err := e.Fetcher.Fetch(ctx, l.URL)
		if err != nil {
			e.fail(&summary, l.URL, "fetch failed", err)
			continue
		}
		title, body, err := page.ParseNational(doc)
		if err != nil {
			e.fail(&summary, l.URL, "parse failed", err)
			continue
		}

		rep, err := e.ProcessNational(ctx, l.URL, title, body)
		if err != nil {
			return summary, err
		}
		summary.add(rep)
		seen[l.URL] = true
	}
	return summary, nil
}

// RunProvincial processes provincial bulletins in the given order. A
// contradiction stops the batch and is returned; bulletins with no national
// record are skipped.
func (e *Engine) RunProvincial(ctx context.Context, urls []string) (Summary, error) {
	var summary Summary

	seen, err := e.Store.References(ctx)
	if err != nil {
		return summary, err
	}

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if seen[url] {
			e.Log.Debug("already recorded", zap.String("ref", url))
			summary.Skipped++
			continue
		}

		doc, err := e.Fetcher.Fetch(ctx, url)
		if err != nil {
			e.fail(&summary, url, "fetch failed", err)
			continue
		}
		body, err := page.ParseProvincial(doc)
		if err != nil {
			e.fail(&summary, url, "parse failed", err)
			continue
		}

		rep, err := e.ProcessProvincial(ctx, url, body)
		if errors.Is(err, ErrNoPrimary) {
			summary.add(rep)
			continue
		}
		if err != nil {
			summary.add(rep)
			return summary, err
		}
		summary.add(rep)
		seen[url] = true
	}
	return summary, nil
}

func (e *Engine) fail(s *Summary, ref, msg string, err error) {
	e.Log.Error(msg, zap.String("ref", ref), zap.Error(err))
	s.Failed++
}
