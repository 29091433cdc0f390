// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import "github.com/pdiddy/ncov-ledger/pkg/types"

// FoldProvincial normalises counts extracted from a provincial bulletin so
// they line up with the national definitions. Once the province started
// reporting critical cases separately, the national "severe" figure covers
// both, so critical is added to severe. Before that split the provincial
// severe figure measured something else and is dropped. It also fills
// hb_remaining_confirmed when the three cumulative counts are present.
func FoldProvincial(c types.Counts) types.Counts {
	out := c.Clone()

	critical, hasCritical := out.Get(types.HBRemainingCritical)
	delete(out, types.HBRemainingCritical)
	if severe, ok := out.Get(types.HBRemainingSevere); ok && hasCritical {
		out.Set(types.HBRemainingSevere, severe+critical)
	} else {
		delete(out, types.HBRemainingSevere)
	}

	total, okTotal := out.Get(types.HBTotalConfirmed)
	cured, okCured := out.Get(types.HBCured)
	death, okDeath := out.Get(types.HBDeath)
	if okTotal && okCured && okDeath {
		out.Set(types.HBRemainingConfirmed, total-cured-death)
	}
	return out
}

// computedProvincial lists the indicators FoldProvincial derives instead of
// reading them from the bulletin.
var computedProvincial = []types.Indicator{types.HBRemainingConfirmed}

// SplitComputed separates the values read from a provincial bulletin from
// the ones FoldProvincial computed. Only read values are compared against
// the national record.
func SplitComputed(c types.Counts) (read, computed types.Counts) {
	read = c.Clone()
	computed = types.Counts{}
	for _, ind := range computedProvincial {
		if v, ok := read.Get(ind); ok {
			computed.Set(ind, v)
			delete(read, ind)
		}
	}
	return read, computed
}
