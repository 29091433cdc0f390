// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package derive computes indicators that bulletins never state directly
// but that follow from stored ones. Derived values are views: they are
// recomputed from stored fields on every read and never persisted, so a
// change here needs no re-scrape.
//
// Precedence is fixed and one level deep. A derivation reads stored fields
// only, never another derivation. Non-provincial views resolve each operand
// stored-first, then derived.
package derive

import (
	"time"

	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// remaining describes "currently confirmed = total - cured - death".
type remaining struct {
	Total, Cured, Death types.Indicator
}

// delta describes a daily count recovered from two consecutive cumulative
// counts.
type delta struct {
	Cumulative types.Indicator
}

var remainingRules = map[types.Indicator]remaining{
	types.RemainingConfirmed:   {types.TotalConfirmed, types.Cured, types.Death},
	types.HBRemainingConfirmed: {types.HBTotalConfirmed, types.HBCured, types.HBDeath},
}

var deltaRules = map[types.Indicator]delta{
	types.NewConfirmed:   {types.TotalConfirmed},
	types.NewSevere:      {types.RemainingSevere},
	types.NewCured:       {types.Cured},
	types.NewDeath:       {types.Death},
	types.HBNewConfirmed: {types.HBTotalConfirmed},
	types.HBNewSevere:    {types.HBRemainingSevere},
	types.HBNewCured:     {types.HBCured},
	types.HBNewDeath:     {types.HBDeath},
}

// View reads one record together with its predecessor.
type View struct {
	Record types.Record

	// Previous is the record for the day before, or nil. A record for any
	// other day is ignored.
	Previous *types.Record
}

// NewView pairs rec with prev.
func NewView(rec types.Record, prev *types.Record) View {
	return View{Record: rec, Previous: prev}
}

// Date returns the day the view describes.
func (v View) Date() time.Time { return v.Record.Date }

// Stored returns the value as persisted, without derivation.
func (v View) Stored(ind types.Indicator) (int, bool) {
	return v.Record.Values.Get(ind)
}

// Value returns the stored value of ind, or its derivation when the stored
// value is absent.
func (v View) Value(ind types.Indicator) (int, bool) {
	if n, ok := v.Stored(ind); ok {
		return n, true
	}
	if r, ok := remainingRules[ind]; ok {
		return v.remaining(r)
	}
	if d, ok := deltaRules[ind]; ok {
		return v.delta(d)
	}
	return 0, false
}

func (v View) remaining(r remaining) (int, bool) {
	total, ok1 := v.Stored(r.Total)
	cured, ok2 := v.Stored(r.Cured)
	death, ok3 := v.Stored(r.Death)
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	return total - cured - death, true
}

func (v View) delta(d delta) (int, bool) {
	prev := v.previousDay()
	if prev == nil {
		return 0, false
	}
	today, ok := v.Stored(d.Cumulative)
	if !ok {
		return 0, false
	}
	yesterday, ok := prev.Values.Get(d.Cumulative)
	if !ok {
		return 0, false
	}
	return today - yesterday, true
}

func (v View) previousDay() *types.Record {
	if v.Previous == nil {
		return nil
	}
	if !v.Previous.Date.Equal(v.Record.Date.AddDate(0, 0, -1)) {
		return nil
	}
	return v.Previous
}

// NonProvincial returns the non-provincial view of q.
func (v View) NonProvincial(q types.Quantity) (int, bool) {
	s, ok := splitByQuantity[q]
	if !ok {
		return 0, false
	}
	return s.Apply(v)
}

// Series pairs each record of an ascending slice with its predecessor.
func Series(records []types.Record) []View {
	views := make([]View, len(records))
	for i := range records {
		var prev *types.Record
		if i > 0 {
			prev = &records[i-1]
		}
		views[i] = NewView(records[i], prev)
	}
	return views
}
