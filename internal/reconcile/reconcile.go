// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile merges counts scraped from the provincial bulletin into
// the record already built from the national bulletin for the same day.
//
// The two authorities publish the same facts independently. A value one of
// them omits is filled in from the other; two different values for the same
// fact are a contradiction that stops the batch for manual review.
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// ContradictionError reports two sources disagreeing on one indicator for
// one day.
type ContradictionError struct {
	Date      time.Time
	Indicator types.Indicator
	Stored    int
	Scraped   int
}

func (e *ContradictionError) Error() string {
	return fmt.Sprintf("%s %s discrepancy: national value %d, provincial value %d",
		e.Date.Format("2006-01-02"), e.Indicator, e.Stored, e.Scraped)
}

// IsContradiction reports whether err wraps a *ContradictionError.
func IsContradiction(err error) bool {
	var ce *ContradictionError
	return errors.As(err, &ce)
}

// Outcome lists what a reconciliation changed.
type Outcome struct {
	// Filled are indicators the stored record lacked and now carries.
	Filled []types.Indicator

	// Agreed are indicators both sources reported with the same value.
	Agreed []types.Indicator
}

// Reconcile merges scraped into stored. Only stored indicators take part;
// transient ones must have been folded beforehand. Every indicator is
// checked before stored is modified, so on a contradiction stored is left
// as it was and the first conflicting indicator in canonical order is
// returned.
func Reconcile(stored *types.Record, scraped types.Counts) (Outcome, error) {
	if stored.Values == nil {
		stored.Values = types.Counts{}
	}

	var out Outcome
	for _, ind := range scraped.Indicators() {
		if !ind.Stored() {
			continue
		}
		v := scraped[ind]
		existing, ok := stored.Values.Get(ind)
		switch {
		case !ok:
			out.Filled = append(out.Filled, ind)
		case existing == v:
			out.Agreed = append(out.Agreed, ind)
		default:
			return Outcome{}, &ContradictionError{
				Date:      stored.Date,
				Indicator: ind,
				Stored:    existing,
				Scraped:   v,
			}
		}
	}

	for _, ind := range out.Filled {
		stored.Values.Set(ind, scraped[ind])
	}
	return out, nil
}
