// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// MemoryStore is an in-process Store with the same merge rules as
// SQLiteStore. It is used by tests and by dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]types.Record
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]types.Record), now: time.Now}
}

// Get returns a copy of the record for date, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, date time.Time) (*types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[types.Day(date).Format(dateLayout)]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Values = rec.Values.Clone()
	return &rec, nil
}

// Upsert creates the record for rec.Date or merges rec into it with the
// same rules as SQLiteStore.Upsert. A reference already recorded for another
// date is rejected.
func (m *MemoryStore) Upsert(_ context.Context, rec *types.Record) error {
	if rec.Date.IsZero() {
		return eris.New("record has no date")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := types.Day(rec.Date).Format(dateLayout)
	for k, other := range m.records {
		if k == key {
			continue
		}
		if rec.SourceRef != "" && other.SourceRef == rec.SourceRef {
			return eris.Errorf("upserting record %s: source_ref %s already recorded for %s", key, rec.SourceRef, k)
		}
		if rec.ProvincialRef != "" && other.ProvincialRef == rec.ProvincialRef {
			return eris.Errorf("upserting record %s: provincial_ref %s already recorded for %s", key, rec.ProvincialRef, k)
		}
	}

	rec.UpdatedAt = m.now().UTC()
	cur, ok := m.records[key]
	if !ok {
		cur = types.Record{Date: types.Day(rec.Date), Values: types.Counts{}}
	}
	merge(&cur, rec)
	m.records[key] = cur
	return nil
}

// List returns copies of every record ordered by ascending date.
func (m *MemoryStore) List(_ context.Context) ([]types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Record, 0, len(m.records))
	for _, rec := range m.records {
		rec.Values = rec.Values.Clone()
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// References returns every recorded national and provincial reference.
func (m *MemoryStore) References(_ context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	refs := make(map[string]bool)
	for _, rec := range m.records {
		if rec.SourceRef != "" {
			refs[rec.SourceRef] = true
		}
		if rec.ProvincialRef != "" {
			refs[rec.ProvincialRef] = true
		}
	}
	return refs, nil
}

// merge applies src onto dst with the upsert rules.
func merge(dst *types.Record, src *types.Record) {
	if dst.Values == nil {
		dst.Values = types.Counts{}
	}
	for _, ind := range src.Values.Indicators() {
		if ind.Stored() {
			dst.Values.Set(ind, src.Values[ind])
		}
	}
	setIf(&dst.SourceRef, src.SourceRef)
	setIf(&dst.SourceTitle, src.SourceTitle)
	setIf(&dst.SourceText, src.SourceText)
	setIf(&dst.ProvincialRef, src.ProvincialRef)
	setIf(&dst.ProvincialText, src.ProvincialText)
	dst.UpdatedAt = src.UpdatedAt
}

func setIf(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
