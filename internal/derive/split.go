// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package derive

import "github.com/pdiddy/ncov-ledger/pkg/types"

// Split derives the part of a quantity outside the province from the
// national and provincial figures.
type Split struct {
	Quantity   types.Quantity
	National   types.Indicator
	Provincial types.Indicator

	// Name is the export key, e.g. "not_hb_cured".
	Name string

	Fn func(national, provincial int) int
}

// Apply resolves both operands through v and combines them. The result is
// absent if either operand is.
func (s Split) Apply(v View) (int, bool) {
	n, ok := v.Value(s.National)
	if !ok {
		return 0, false
	}
	p, ok := v.Value(s.Provincial)
	if !ok {
		return 0, false
	}
	return s.Fn(n, p), true
}

func subtract(national, provincial int) int { return national - provincial }

// splits is the derivation table, one entry per quantity in export order.
var splits = []Split{
	{types.QTotalConfirmed, types.TotalConfirmed, types.HBTotalConfirmed, "not_hb_total_confirmed", subtract},
	{types.QRemainingConfirmed, types.RemainingConfirmed, types.HBRemainingConfirmed, "not_hb_remaining_confirmed", subtract},
	{types.QRemainingSevere, types.RemainingSevere, types.HBRemainingSevere, "not_hb_remaining_severe", subtract},
	{types.QRemainingSuspected, types.RemainingSuspected, types.HBRemainingSuspected, "not_hb_remaining_suspected", subtract},
	{types.QCured, types.Cured, types.HBCured, "not_hb_cured", subtract},
	{types.QDeath, types.Death, types.HBDeath, "not_hb_death", subtract},
	{types.QNewConfirmed, types.NewConfirmed, types.HBNewConfirmed, "not_hb_new_confirmed", subtract},
	{types.QNewSevere, types.NewSevere, types.HBNewSevere, "not_hb_new_severe", subtract},
	{types.QNewSuspected, types.NewSuspected, types.HBNewSuspected, "not_hb_new_suspected", subtract},
	{types.QNewCured, types.NewCured, types.HBNewCured, "not_hb_new_cured", subtract},
	{types.QNewDeath, types.NewDeath, types.HBNewDeath, "not_hb_new_death", subtract},
}

var splitByQuantity = func() map[types.Quantity]Split {
	m := make(map[types.Quantity]Split, len(splits))
	for _, s := range splits {
		m[s.Quantity] = s
	}
	return m
}()

// NonProvincial returns the derivation table, one entry per quantity in
// export order.
func NonProvincial() []Split {
	out := make([]Split, len(splits))
	copy(out, splits)
	return out
}
