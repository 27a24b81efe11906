package main

import (
	"flag"
	"time"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

// requestFlags are the flags shared by commands that select a forecast cycle.
type requestFlags struct {
	reach   int64
	variant string
	date    string
	hour    int
	offset  int
	lag     time.Duration
}

func (f *requestFlags) register(fs *flag.FlagSet, withReach bool) {
	if withReach {
		fs.Int64Var(&f.reach, "reach", 0, "reach identifier (comID)")
	}
	fs.StringVar(&f.variant, "variant", "short_range", "analysis_assim, short_range or medium_range")
	fs.StringVar(&f.date, "date", "", "cycle date YYYYMMDD (default: latest available)")
	fs.IntVar(&f.hour, "hour", -1, "cycle hour 0-23 (default: latest available)")
	fs.IntVar(&f.offset, "offset", 0, "analysis assimilation look-back step 0-2")
	fs.DurationVar(&f.lag, "lag", 2*time.Hour, "assumed publication delay when picking the latest cycle")
}

// request validates the flags. Without -date and -hour the latest complete
// cycle is chosen.
func (f *requestFlags) request() (domain.ForecastRequest, error) {
	variant, err := domain.ParseVariant(f.variant)
	if err != nil {
		return domain.ForecastRequest{}, err
	}
	date, hour := domain.CurrentCycle(f.lag, variant)
	if f.date != "" {
		date = f.date
	}
	if f.hour >= 0 {
		hour = f.hour
	}
	reach := f.reach
	if reach == 0 {
		reach = 1 // keys do not depend on the reach
	}
	return domain.NewForecastRequest(reach, date, hour, variant, f.offset)
}
