// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"time"
)

// Indicator names a single stored statistic. The string value doubles as
// the ledger column name.
type Indicator string

// National indicators, extracted from the national bulletin.
const (
	TotalConfirmed       Indicator = "total_confirmed"
	RemainingConfirmed   Indicator = "remaining_confirmed"
	RemainingSevere      Indicator = "remaining_severe"
	RemainingSuspected   Indicator = "remaining_suspected"
	Cured                Indicator = "cured"
	Death                Indicator = "death"
	NewConfirmed         Indicator = "new_confirmed"
	NewSevere            Indicator = "new_severe"
	NewSuspected         Indicator = "new_suspected"
	NewCured             Indicator = "new_cured"
	NewDeath             Indicator = "new_death"
	TotalTracked         Indicator = "total_tracked"
	NewLifted            Indicator = "new_lifted"
	RemainingQuarantined Indicator = "remaining_quarantined"
)

// Provincial indicators, extracted from the provincial bulletin or from the
// provincial sub-counts embedded in the national one.
const (
	HBTotalConfirmed     Indicator = "hb_total_confirmed"
	HBRemainingConfirmed Indicator = "hb_remaining_confirmed"
	HBRemainingSevere    Indicator = "hb_remaining_severe"
	HBRemainingSuspected Indicator = "hb_remaining_suspected"
	HBCured              Indicator = "hb_cured"
	HBDeath              Indicator = "hb_death"
	HBNewConfirmed       Indicator = "hb_new_confirmed"
	HBNewSevere          Indicator = "hb_new_severe"
	HBNewSuspected       Indicator = "hb_new_suspected"
	HBNewCured           Indicator = "hb_new_cured"
	HBNewDeath           Indicator = "hb_new_death"

	// HBRemainingCritical only exists during provincial extraction. It is
	// folded into HBRemainingSevere and never stored.
	HBRemainingCritical Indicator = "hb_remaining_critical"
)

// indicators lists every stored indicator in canonical order.
var indicators = []Indicator{
	TotalConfirmed, RemainingConfirmed, RemainingSevere, RemainingSuspected,
	Cured, Death, NewConfirmed, NewSevere, NewSuspected, NewCured, NewDeath,
	TotalTracked, NewLifted, RemainingQuarantined,
	HBTotalConfirmed, HBRemainingConfirmed, HBRemainingSevere, HBRemainingSuspected,
	HBCured, HBDeath, HBNewConfirmed, HBNewSevere, HBNewSuspected, HBNewCured, HBNewDeath,
}

var indicatorRank = func() map[Indicator]int {
	m := make(map[Indicator]int, len(indicators))
	for i, ind := range indicators {
		m[ind] = i
	}
	return m
}()

// Indicators returns every stored indicator in canonical order. The
// returned slice is a copy.
func Indicators() []Indicator {
	out := make([]Indicator, len(indicators))
	copy(out, indicators)
	return out
}

// Stored reports whether ind is persisted in the ledger.
func (ind Indicator) Stored() bool {
	_, ok := indicatorRank[ind]
	return ok
}

// Quantity is a statistic reported for both the whole country and the
// province. Every quantity has a national and a provincial indicator.
type Quantity string

const (
	QTotalConfirmed     Quantity = "total_confirmed"
	QRemainingConfirmed Quantity = "remaining_confirmed"
	QRemainingSevere    Quantity = "remaining_severe"
	QRemainingSuspected Quantity = "remaining_suspected"
	QCured              Quantity = "cured"
	QDeath              Quantity = "death"
	QNewConfirmed       Quantity = "new_confirmed"
	QNewSevere          Quantity = "new_severe"
	QNewSuspected       Quantity = "new_suspected"
	QNewCured           Quantity = "new_cured"
	QNewDeath           Quantity = "new_death"
)

// Quantities returns the split quantities in export order.
func Quantities() []Quantity {
	return []Quantity{
		QTotalConfirmed, QRemainingConfirmed, QRemainingSevere, QRemainingSuspected,
		QCured, QDeath, QNewConfirmed, QNewSevere, QNewSuspected, QNewCured, QNewDeath,
	}
}

// Counts maps indicators to their values. A missing key means the value is
// absent, which is distinct from zero.
type Counts map[Indicator]int

// Get returns the value of ind and whether it is present.
func (c Counts) Get(ind Indicator) (int, bool) {
	v, ok := c[ind]
	return v, ok
}

// Set records a value for ind.
func (c Counts) Set(ind Indicator, v int) {
	c[ind] = v
}

// Clone returns an independent copy of c. A nil receiver yields an empty map.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Indicators returns the present indicators, stored ones in canonical order
// followed by any transient ones sorted by name.
func (c Counts) Indicators() []Indicator {
	out := make([]Indicator, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := indicatorRank[out[i]]
		rj, jok := indicatorRank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// Record is one calendar day of the series with the documents that
// produced it.
type Record struct {
	// Date is the reported day at UTC midnight. Unique across records.
	Date time.Time `json:"date" yaml:"date"`

	// Values holds the stored indicators for this day.
	Values Counts `json:"values" yaml:"values"`

	// SourceRef is the URL of the national bulletin. Unique across records.
	SourceRef string `json:"source_ref" yaml:"source_ref"`

	// SourceTitle and SourceText are the verbatim national inputs, kept so
	// the record can be re-derived when rules change.
	SourceTitle string `json:"source_title" yaml:"source_title"`
	SourceText  string `json:"source_text" yaml:"source_text"`

	// ProvincialRef is the URL of the provincial bulletin merged into this
	// record, if any. Unique across records.
	ProvincialRef  string `json:"provincial_ref,omitempty" yaml:"provincial_ref,omitempty"`
	ProvincialText string `json:"provincial_text,omitempty" yaml:"provincial_text,omitempty"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as MM-DD, the form used for introduction thresholds
// and export headers.
func DateKey(t time.Time) string {
	return t.Format("01-02")
}
