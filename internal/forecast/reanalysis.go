package forecast

import (
	"context"
	"fmt"

	"github.com/couchcryptid/nwm-streamflow/internal/dataset"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

// Reanalysis opens resolved reanalysis keys as one dataset and returns the
// reach's series in time order.
func Reanalysis(ctx context.Context, src Source, keys []string, reach int64) (domain.TimeSeries, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no reanalysis files in range", domain.ErrInvalidRange)
	}
	ds, err := src.Opener.Open(ctx, keys)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	series, err := ds.Series(ctx, reach, dataset.Streamflow)
	if err != nil {
		return nil, err
	}
	src.Logger.Debug("reanalysis read", "reach_id", reach, "files", len(keys))
	return series, nil
}
