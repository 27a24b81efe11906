package domain

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Point is one streamflow value in cubic meters per second. Missing values are NaN.
type Point struct {
	Time time.Time `json:"time" msgpack:"time"`
	Flow float64   `json:"flow" msgpack:"flow"`
}

type pointJSON struct {
	Time time.Time `json:"time"`
	Flow *float64  `json:"flow"`
}

// MarshalJSON writes NaN flows as null, which encoding/json cannot do for floats.
func (p Point) MarshalJSON() ([]byte, error) {
	out := pointJSON{Time: p.Time}
	if !math.IsNaN(p.Flow) {
		f := p.Flow
		out.Flow = &f
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null flows back as NaN.
func (p *Point) UnmarshalJSON(b []byte) error {
	var in pointJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	p.Time = in.Time
	p.Flow = math.NaN()
	if in.Flow != nil {
		p.Flow = *in.Flow
	}
	return nil
}

// TimeSeries is a list of points in ascending time order.
type TimeSeries []Point

// Times returns the timestamps of the series.
func (ts TimeSeries) Times() []time.Time {
	out := make([]time.Time, len(ts))
	for i, p := range ts {
		out[i] = p.Time
	}
	return out
}

// Flows returns the flow values of the series.
func (ts TimeSeries) Flows() []float64 {
	out := make([]float64, len(ts))
	for i, p := range ts {
		out[i] = p.Flow
	}
	return out
}

// MemberSeries is one labelled run's series, e.g. an ensemble member.
type MemberSeries struct {
	Label  string     `json:"label" msgpack:"label"`
	Series TimeSeries `json:"series" msgpack:"series"`
}

// EnsembleSeries holds every member's series and their pointwise mean.
type EnsembleSeries struct {
	Members []MemberSeries `json:"members" msgpack:"members"`
	Mean    TimeSeries     `json:"mean" msgpack:"mean"`
}

// Forecast is a detached, assembled forecast for one reach. It holds no
// references to remote handles.
type Forecast struct {
	Request     ForecastRequest `json:"request" msgpack:"request"`
	Anchor      Point           `json:"anchor" msgpack:"anchor"`
	Members     []MemberSeries  `json:"members" msgpack:"members"`
	Mean        TimeSeries      `json:"mean,omitempty" msgpack:"mean,omitempty"`
	AssembledAt time.Time       `json:"assembled_at" msgpack:"assembled_at"`
}

// Merge inserts the anchor and then each forecast point into one series keyed
// by time and returns it sorted ascending. A later point replaces an earlier
// one at the same timestamp.
func Merge(anchor Point, forecast []Point) TimeSeries {
	byTime := make(map[int64]Point, len(forecast)+1)
	byTime[anchor.Time.UnixNano()] = anchor
	for _, p := range forecast {
		byTime[p.Time.UnixNano()] = p
	}

	out := make(TimeSeries, 0, len(byTime))
	for _, p := range byTime {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// EnsembleMean averages members pointwise. Every timestamp present in any
// member appears in the result; its value is the mean over the members that
// report a non-NaN value there, or NaN when none do.
func EnsembleMean(members []MemberSeries) TimeSeries {
	values := make(map[int64][]float64)
	times := make(map[int64]time.Time)
	for _, m := range members {
		for _, p := range m.Series {
			k := p.Time.UnixNano()
			times[k] = p.Time
			if math.IsNaN(p.Flow) {
				if _, ok := values[k]; !ok {
					values[k] = nil
				}
				continue
			}
			values[k] = append(values[k], p.Flow)
		}
	}

	out := make(TimeSeries, 0, len(times))
	for k, t := range times {
		flow := math.NaN()
		if vs := values[k]; len(vs) > 0 {
			flow = stat.Mean(vs, nil)
		}
		out = append(out, Point{Time: t, Flow: flow})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// NewEnsembleSeries merges the anchor into every member and derives the mean.
func NewEnsembleSeries(anchor Point, members []MemberSeries) EnsembleSeries {
	merged := make([]MemberSeries, len(members))
	for i, m := range members {
		merged[i] = MemberSeries{Label: m.Label, Series: Merge(anchor, m.Series)}
	}
	return EnsembleSeries{Members: merged, Mean: EnsembleMean(merged)}
}
