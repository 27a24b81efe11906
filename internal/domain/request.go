package domain

import (
	"fmt"
	"strings"
	"time"
)

// Variant identifies an NWM product.
type Variant int

const (
	Assimilation Variant = iota + 1
	ShortRange
	MediumRangeEnsemble
)

const (
	// EnsembleMembers is the number of medium range ensemble members.
	EnsembleMembers = 7
	// MaxAssimOffset is the largest analysis-assimilation look-back step (tm02).
	MaxAssimOffset = 2

	dateLayout = "20060102"
)

// String returns the product folder name used in object keys.
func (v Variant) String() string {
	switch v {
	case Assimilation:
		return "analysis_assim"
	case ShortRange:
		return "short_range"
	case MediumRangeEnsemble:
		return "medium_range"
	default:
		return "unknown"
	}
}

// ParseVariant accepts the product folder names plus a few short aliases.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "analysis_assim", "assim", "aa":
		return Assimilation, nil
	case "short_range", "short", "sr":
		return ShortRange, nil
	case "medium_range", "medium", "mr":
		return MediumRangeEnsemble, nil
	default:
		return 0, fmt.Errorf("%w: unknown variant %q", ErrPathConstruction, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ForecastRequest fully determines the set of remote objects for one forecast.
// Build it with NewForecastRequest so the fields are validated.
type ForecastRequest struct {
	ReachID     int64   `json:"reach_id" msgpack:"reach_id"`
	Date        string  `json:"date" msgpack:"date"` // YYYYMMDD
	StartHour   int     `json:"start_hour" msgpack:"start_hour"`
	Variant     Variant `json:"variant" msgpack:"variant"`
	AssimOffset int     `json:"assim_offset,omitempty" msgpack:"assim_offset,omitempty"`
}

// NewForecastRequest validates its inputs eagerly and returns
// ErrPathConstruction for anything that could not form a real key.
func NewForecastRequest(reachID int64, date string, startHour int, variant Variant, assimOffset int) (ForecastRequest, error) {
	if reachID <= 0 {
		return ForecastRequest{}, fmt.Errorf("%w: reach id %d must be positive", ErrPathConstruction, reachID)
	}
	if len(date) != len(dateLayout) {
		return ForecastRequest{}, fmt.Errorf("%w: date %q must be YYYYMMDD", ErrPathConstruction, date)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return ForecastRequest{}, fmt.Errorf("%w: date %q: %v", ErrPathConstruction, date, err)
	}
	if startHour < 0 || startHour > 23 {
		return ForecastRequest{}, fmt.Errorf("%w: start hour %d out of range 0-23", ErrPathConstruction, startHour)
	}
	if assimOffset < 0 || assimOffset > MaxAssimOffset {
		return ForecastRequest{}, fmt.Errorf("%w: assimilation offset %d out of range 0-%d", ErrPathConstruction, assimOffset, MaxAssimOffset)
	}
	switch variant {
	case Assimilation, ShortRange, MediumRangeEnsemble:
	default:
		return ForecastRequest{}, fmt.Errorf("%w: unknown variant %d", ErrPathConstruction, int(variant))
	}
	return ForecastRequest{
		ReachID:     reachID,
		Date:        date,
		StartHour:   startHour,
		Variant:     variant,
		AssimOffset: assimOffset,
	}, nil
}

// StartHourString returns the cycle hour zero-padded to two digits.
func (r ForecastRequest) StartHourString() string {
	return fmt.Sprintf("%02d", r.StartHour)
}

// Cycle returns the forecast issuance time in UTC.
func (r ForecastRequest) Cycle() time.Time {
	d, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return time.Time{}
	}
	return d.Add(time.Duration(r.StartHour) * time.Hour)
}

// WithVariant returns a copy of the request for another product of the same cycle.
func (r ForecastRequest) WithVariant(v Variant) ForecastRequest {
	r.Variant = v
	return r
}

// CycleInterval is how often the producer issues a cycle of v. Medium range
// runs only at 00, 06, 12 and 18 UTC.
func (v Variant) CycleInterval() time.Duration {
	if v == MediumRangeEnsemble {
		return 6 * time.Hour
	}
	return time.Hour
}

// LatestCycle returns the newest cycle of v expected to be complete at now,
// given how long the producer takes to publish a cycle.
func LatestCycle(now time.Time, lag time.Duration, v Variant) (date string, hour int) {
	c := now.UTC().Add(-lag).Truncate(time.Hour)
	step := int(v.CycleInterval() / time.Hour)
	c = c.Add(-time.Duration(c.Hour()%step) * time.Hour)
	return c.Format(dateLayout), c.Hour()
}

// CurrentCycle is LatestCycle evaluated against the package clock.
func CurrentCycle(lag time.Duration, v Variant) (date string, hour int) {
	return LatestCycle(clock.Now(), lag, v)
}

func formatLead(lead int) string {
	return fmt.Sprintf("%03d", lead)
}
