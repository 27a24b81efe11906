package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

func at(h int, flow float64) Point {
	return Point{Time: t0.Add(time.Duration(h) * time.Hour), Flow: flow}
}

func TestMerge_OrdersAndDeduplicates(t *testing.T) {
	got := Merge(at(0, 1), []Point{at(2, 20), at(1, 10), at(0, 5)})

	require.Len(t, got, 3)
	assert.Equal(t, []float64{5, 10, 20}, got.Flows())
	assert.Equal(t, []time.Time{t0, t0.Add(time.Hour), t0.Add(2 * time.Hour)}, got.Times())
}

func TestMerge_AnchorOnly(t *testing.T) {
	got := Merge(at(0, 1), nil)
	assert.Equal(t, TimeSeries{at(0, 1)}, got)
}

func TestEnsembleMean(t *testing.T) {
	members := []MemberSeries{
		{Label: "1", Series: TimeSeries{at(0, 1), at(3, 10), at(6, 100)}},
		{Label: "2", Series: TimeSeries{at(0, 3), at(3, math.NaN())}},
		{Label: "3", Series: TimeSeries{at(0, 5), at(3, 20), at(9, math.NaN())}},
	}

	got := EnsembleMean(members)

	require.Len(t, got, 4)
	assert.InDelta(t, 3, got[0].Flow, 1e-9)
	assert.InDelta(t, 15, got[1].Flow, 1e-9, "NaN members are skipped")
	assert.InDelta(t, 100, got[2].Flow, 1e-9, "timestamp missing from other members")
	assert.True(t, math.IsNaN(got[3].Flow), "no member reports a value")
	assert.Equal(t, t0.Add(9*time.Hour), got[3].Time)
}

func TestNewEnsembleSeries_AnchorInEveryMember(t *testing.T) {
	anchor := at(0, 2)
	es := NewEnsembleSeries(anchor, []MemberSeries{
		{Label: "1", Series: TimeSeries{at(3, 4)}},
		{Label: "2", Series: TimeSeries{at(3, 8)}},
	})

	require.Len(t, es.Members, 2)
	for _, m := range es.Members {
		assert.Equal(t, anchor, m.Series[0])
	}
	assert.Equal(t, []float64{2, 6}, es.Mean.Flows())
}

func TestPoint_JSONNaNIsNull(t *testing.T) {
	b, err := json.Marshal(TimeSeries{at(0, 1.5), at(1, math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"time":"2024-06-01T06:00:00Z","flow":1.5},{"time":"2024-06-01T07:00:00Z","flow":null}]`,
		string(b))

	var back TimeSeries
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back, 2)
	assert.Equal(t, 1.5, back[0].Flow)
	assert.True(t, math.IsNaN(back[1].Flow))
	assert.True(t, back[1].Time.Equal(t0.Add(time.Hour)))
}
