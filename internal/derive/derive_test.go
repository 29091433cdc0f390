// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package derive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ncov-ledger/pkg/types"
)

func date(month, day int) time.Time {
	return time.Date(2020, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func record(d time.Time, values types.Counts) types.Record {
	return types.Record{Date: d, Values: values}
}

func TestRemainingConfirmed(t *testing.T) {
	tests := []struct {
		name   string
		values types.Counts
		want   int
		wantOK bool
	}{
		{
			name:   "stored value wins",
			values: types.Counts{types.RemainingConfirmed: 100, types.TotalConfirmed: 500, types.Cured: 10, types.Death: 5},
			want:   100, wantOK: true,
		},
		{
			name:   "computed from cumulative counts",
			values: types.Counts{types.TotalConfirmed: 500, types.Cured: 10, types.Death: 5},
			want:   485, wantOK: true,
		},
		{
			name:   "zero cured and death still computes",
			values: types.Counts{types.TotalConfirmed: 41, types.Cured: 0, types.Death: 0},
			want:   41, wantOK: true,
		},
		{
			name:   "missing death",
			values: types.Counts{types.TotalConfirmed: 500, types.Cured: 10},
		},
		{
			name:   "missing total",
			values: types.Counts{types.Cured: 10, types.Death: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(record(date(2, 1), tt.values), nil)
			got, ok := v.Value(types.RemainingConfirmed)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvincialRemainingConfirmed(t *testing.T) {
	v := NewView(record(date(2, 5), types.Counts{
		types.HBTotalConfirmed: 5806, types.HBCured: 364, types.HBDeath: 204,
	}), nil)

	got, ok := v.Value(types.HBRemainingConfirmed)
	require.True(t, ok)
	assert.Equal(t, 5238, got)
}

func TestProvincialNewSevereFromPreviousDay(t *testing.T) {
	prev := record(date(2, 4), types.Counts{types.HBRemainingSevere: 1000})
	cur := record(date(2, 5), types.Counts{types.HBRemainingSevere: 1248})

	t.Run("computed", func(t *testing.T) {
		got, ok := NewView(cur, &prev).Value(types.HBNewSevere)
		require.True(t, ok)
		assert.Equal(t, 248, got)
	})

	t.Run("stored value wins", func(t *testing.T) {
		stored := record(date(2, 5), types.Counts{types.HBRemainingSevere: 1248, types.HBNewSevere: 7})
		got, ok := NewView(stored, &prev).Value(types.HBNewSevere)
		require.True(t, ok)
		assert.Equal(t, 7, got)
	})

	t.Run("no previous record", func(t *testing.T) {
		_, ok := NewView(cur, nil).Value(types.HBNewSevere)
		assert.False(t, ok)
	})

	t.Run("previous record is not the day before", func(t *testing.T) {
		gap := record(date(2, 3), types.Counts{types.HBRemainingSevere: 900})
		_, ok := NewView(cur, &gap).Value(types.HBNewSevere)
		assert.False(t, ok)
	})

	t.Run("previous record lacks the cumulative value", func(t *testing.T) {
		empty := record(date(2, 4), types.Counts{})
		_, ok := NewView(cur, &empty).Value(types.HBNewSevere)
		assert.False(t, ok)
	})

	t.Run("decrease gives negative delta", func(t *testing.T) {
		down := record(date(2, 5), types.Counts{types.HBRemainingSevere: 990})
		got, ok := NewView(down, &prev).Value(types.HBNewSevere)
		require.True(t, ok)
		assert.Equal(t, -10, got)
	})
}

func TestDerivationsDoNotChain(t *testing.T) {
	// remaining_severe is not derivable, so new_severe cannot be derived
	// even though both records exist.
	prev := record(date(2, 4), types.Counts{types.TotalConfirmed: 10, types.Cured: 1, types.Death: 1})
	cur := record(date(2, 5), types.Counts{types.TotalConfirmed: 20, types.Cured: 2, types.Death: 1})

	_, ok := NewView(cur, &prev).Value(types.NewSevere)
	assert.False(t, ok)

	got, ok := NewView(cur, &prev).Value(types.NewConfirmed)
	require.True(t, ok)
	assert.Equal(t, 10, got)
}

func TestNonProvincialIdentity(t *testing.T) {
	prev := record(date(2, 11), types.Counts{
		types.RemainingSevere: 8000, types.HBRemainingSevere: 7000,
	})
	cur := record(date(2, 12), types.Counts{
		types.TotalConfirmed: 59804, types.HBTotalConfirmed: 48206,
		types.Cured: 5911, types.HBCured: 3441,
		types.Death: 1367, types.HBDeath: 1310,
		types.RemainingSevere: 8030, types.HBRemainingSevere: 7084,
		types.NewSevere: 1053,
		types.NewConfirmed: 15152, types.HBNewConfirmed: 14840,
	})
	v := NewView(cur, &prev)

	for _, s := range NonProvincial() {
		n, nok := v.Value(s.National)
		p, pok := v.Value(s.Provincial)
		got, ok := v.NonProvincial(s.Quantity)
		if nok && pok {
			require.True(t, ok, s.Name)
			assert.Equal(t, n-p, got, s.Name)
		} else {
			assert.False(t, ok, s.Name)
			assert.Zero(t, got, s.Name)
		}
	}

	got, _ := v.NonProvincial(types.QTotalConfirmed)
	assert.Equal(t, 11598, got)

	// national remaining_confirmed is derived (59804-5911-1367) and so is
	// the provincial one (48206-3441-1310).
	got, ok := v.NonProvincial(types.QRemainingConfirmed)
	require.True(t, ok)
	assert.Equal(t, 52526-43455, got)

	// national new_severe is stored, provincial is derived from the
	// previous day: 1053 - 84.
	got, ok = v.NonProvincial(types.QNewSevere)
	require.True(t, ok)
	assert.Equal(t, 969, got)

	_, ok = v.NonProvincial(types.QNewSuspected)
	assert.False(t, ok)
}

func TestNonProvincialTable(t *testing.T) {
	table := NonProvincial()
	require.Len(t, table, len(types.Quantities()))

	seen := map[types.Indicator]bool{}
	for i, s := range table {
		assert.Equal(t, types.Quantities()[i], s.Quantity)
		assert.Equal(t, "not_hb_"+string(s.Quantity), s.Name)
		assert.True(t, s.National.Stored(), s.Name)
		assert.True(t, s.Provincial.Stored(), s.Name)
		assert.False(t, seen[s.National] || seen[s.Provincial], "%s reuses an operand", s.Name)
		seen[s.National], seen[s.Provincial] = true, true
		assert.Equal(t, 3, s.Fn(5, 2))
	}

	table[0].Name = "changed"
	assert.Equal(t, "not_hb_total_confirmed", NonProvincial()[0].Name)
}

func TestSeries(t *testing.T) {
	records := []types.Record{
		record(date(2, 1), types.Counts{types.HBRemainingSevere: 10}),
		record(date(2, 2), types.Counts{types.HBRemainingSevere: 15}),
		record(date(2, 4), types.Counts{types.HBRemainingSevere: 30}),
	}

	views := Series(records)
	require.Len(t, views, 3)

	assert.Nil(t, views[0].Previous)
	_, ok := views[0].Value(types.HBNewSevere)
	assert.False(t, ok)

	got, ok := views[1].Value(types.HBNewSevere)
	require.True(t, ok)
	assert.Equal(t, 5, got)

	// 02-03 is missing, so 02-04 has no adjacent day.
	_, ok = views[2].Value(types.HBNewSevere)
	assert.False(t, ok)
	assert.Equal(t, date(2, 4), views[2].Date())
}
