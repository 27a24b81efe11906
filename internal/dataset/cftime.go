package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var refLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// decodeCFTimes converts numeric offsets with CF units such as
// "minutes since 1970-01-01 00:00:00 UTC" into UTC times.
func decodeCFTimes(vals []float64, units string) ([]time.Time, error) {
	step, ref, err := parseCFUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("time[%d] is missing", i)
		}
		out[i] = ref.Add(time.Duration(math.Round(v * float64(step))))
	}
	return out, nil
}

func parseCFUnits(units string) (time.Duration, time.Time, error) {
	unit, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: want \"<unit> since <reference>\"", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "secs", "sec", "s":
		step = time.Second
	case "minutes", "minute", "mins", "min":
		step = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}

	since = strings.TrimSpace(since)
	since = strings.TrimSuffix(since, "UTC")
	since = strings.TrimSuffix(since, "Z")
	since = strings.TrimSpace(since)
	for _, layout := range refLayouts {
		if ref, err := time.ParseInLocation(layout, since, time.UTC); err == nil {
			return step, ref, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: unparseable reference %q", units, since)
}
