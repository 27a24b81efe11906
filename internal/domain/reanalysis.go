package domain

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var freqRe = regexp.MustCompile(`^(\d*)\s*([A-Za-z]+)$`)

// ParseFrequency parses a step such as "12H", "1D", "30min" or "3hr". A missing
// count means 1.
func ParseFrequency(s string) (time.Duration, error) {
	m := freqRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	n := 1
	if m[1] != "" {
		var err error
		n, err = strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: %q: count must be positive", ErrInvalidFrequency, s)
		}
	}

	var unit time.Duration
	switch m[2] {
	case "min", "T":
		unit = time.Minute
	case "H", "h", "HR", "hr":
		unit = time.Hour
	case "D", "d":
		unit = 24 * time.Hour
	case "W", "w":
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q: unknown unit %q", ErrInvalidFrequency, s, m[2])
	}
	return time.Duration(n) * unit, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	dateLayout,
}

// ParseDate accepts the date forms used on the command line, always in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse date %q", ErrInvalidRange, s)
}

// TimeSteps returns start, start+step, ... up to and including end.
func TimeSteps(start, end time.Time, step time.Duration) ([]time.Time, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step %s", ErrInvalidFrequency, step)
	}
	var out []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		out = append(out, t)
	}
	return out, nil
}

func stepsFor(start, end, freq string) ([]time.Time, error) {
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	step, err := ParseFrequency(freq)
	if err != nil {
		return nil, err
	}
	return TimeSteps(s, e, step)
}

// Lister lists object keys under a prefix of a bucket.
type Lister interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// ArchiveResolver finds reanalysis files in a bucket by listing year prefixes
// and filtering on the timestamp embedded in each file name.
type ArchiveResolver struct {
	Lister    Lister
	Bucket    string // e.g. "nwm-archive"
	Marker    string // e.g. "CHRTOUT"
	Extension string // e.g. "DOMAIN1.comp"
}

// Resolve returns "bucket/key" paths for every step between start and end, in
// time order. Steps with no matching object are silently absent.
func (r ArchiveResolver) Resolve(ctx context.Context, start, end, freq string) ([]string, error) {
	steps, err := stepsFor(start, end, freq)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(steps))
	for _, t := range steps {
		wanted[t.Format("2006010215")] = struct{}{}
	}

	var keys []string
	for yr := steps[0].Year(); yr <= steps[len(steps)-1].Year(); yr++ {
		listed, err := r.Lister.List(ctx, r.Bucket, strconv.Itoa(yr))
		if err != nil {
			return nil, fmt.Errorf("list %s/%d: %w", r.Bucket, yr, err)
		}
		for _, k := range listed {
			if !strings.Contains(k, r.Marker) || !strings.HasSuffix(k, r.Extension) {
				continue
			}
			base := path.Base(k)
			if len(base) < 10 {
				continue
			}
			if _, ok := wanted[base[:10]]; ok {
				keys = append(keys, k)
			}
		}
	}

	sort.SliceStable(keys, func(i, j int) bool { return path.Base(keys[i]) < path.Base(keys[j]) })
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = r.Bucket + "/" + strings.TrimPrefix(k, "/")
	}
	return out, nil
}

// Reanalysis directories of the v2 retrospective bucket.
const (
	FullPhysics = "full_physics"
	LongRange   = "long_range"
)

// DirectResolver constructs reanalysis paths without listing. Paths are not
// checked for existence; a missing file fails when it is opened.
type DirectResolver struct {
	Bucket   string // e.g. "national-water-model-v2"
	Analysis string // FullPhysics or LongRange
	Suffix   string // e.g. "CHRTOUT_DOMAIN1.comp"
}

// Resolve returns one path per step between start and end.
func (r DirectResolver) Resolve(start, end, freq string) ([]string, error) {
	if r.Analysis != FullPhysics && r.Analysis != LongRange {
		return nil, fmt.Errorf("%w: unavailable reanalysis directory %q", ErrPathConstruction, r.Analysis)
	}
	steps, err := stepsFor(start, end, freq)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(steps))
	for _, t := range steps {
		rec := t.Format("200601021504")
		out = append(out, fmt.Sprintf("%s/%s/%s/%s.%s", r.Bucket, r.Analysis, rec[:4], rec, r.Suffix))
	}
	return out, nil
}
