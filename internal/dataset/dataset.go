// Package dataset concatenates NWM NetCDF files along time into one lazily
// read dataset.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
	"github.com/couchcryptid/nwm-streamflow/internal/storage"
)

// Streamflow is the channel_rt variable holding reach discharge.
const Streamflow = "streamflow"

// File is one decoded file with a single time step on a feature axis.
type File interface {
	// Times returns the file's embedded time coordinate.
	Times() ([]time.Time, error)
	FeatureLen() (int64, error)
	Features() ([]int64, error)
	FeatureAt(i int64) (int64, error)
	// Value reads variable at feature index i, with fill values as NaN and
	// scale/offset applied.
	Value(variable string, i int64) (float64, error)
	Attr(name string) (any, bool)
	Close() error
}

// ObjectStore opens remote objects as seekable streams.
type ObjectStore interface {
	Open(ctx context.Context, path string) (storage.Object, error)
}

// Decoder turns an open object into a File. The File owns the object.
type Decoder func(obj storage.Object) (File, error)

// Opener opens key lists as Datasets.
type Opener struct {
	store   ObjectStore
	decode  Decoder
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewOpener creates an Opener that decodes NetCDF files.
func NewOpener(store ObjectStore, logger *slog.Logger, metrics *observability.Metrics) *Opener {
	return &Opener{store: store, decode: DecodeNetCDF, logger: logger, metrics: metrics}
}

// WithDecoder returns a copy of the Opener using d.
func (o *Opener) WithDecoder(d Decoder) *Opener {
	cp := *o
	cp.decode = d
	return &cp
}

// Open opens every key and orders the files by their embedded time
// coordinate, regardless of the order of keys. Files must each hold one time
// step and share the feature-axis length. On error every handle opened so
// far is released.
func (o *Opener) Open(ctx context.Context, keys []string) (_ *Dataset, err error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no keys", domain.ErrDatasetOpen)
	}

	ds := &Dataset{files: make([]*member, 0, len(keys))}
	defer func() {
		if err != nil {
			_ = ds.Close()
		}
	}()

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := o.openOne(ctx, key)
		if err != nil {
			return nil, err
		}
		ds.files = append(ds.files, m)

		if len(ds.files) == 1 {
			ds.featureLen = m.featureLen
			continue
		}
		if m.featureLen != ds.featureLen {
			return nil, fmt.Errorf("%w: %s has %d features, %s has %d",
				domain.ErrDatasetOpen, key, m.featureLen, ds.files[0].key, ds.featureLen)
		}
	}

	sort.SliceStable(ds.files, func(i, j int) bool { return ds.files[i].time.Before(ds.files[j].time) })

	o.metrics.DatasetFiles.Observe(float64(len(ds.files)))
	o.logger.Debug("dataset opened",
		"files", len(ds.files),
		"start", ds.files[0].time,
		"end", ds.files[len(ds.files)-1].time,
	)
	return ds, nil
}

func (o *Opener) openOne(ctx context.Context, key string) (*member, error) {
	obj, err := o.store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	f, err := o.decode(obj)
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrDatasetOpen, key, err)
	}

	m := &member{key: key, file: f}
	times, err := f.Times()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: time coordinate of %s: %v", domain.ErrDatasetOpen, key, err)
	}
	if len(times) != 1 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s has %d time steps, want 1", domain.ErrDatasetOpen, key, len(times))
	}
	m.time = times[0]

	m.featureLen, err = f.FeatureLen()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: feature axis of %s: %v", domain.ErrDatasetOpen, key, err)
	}
	return m, nil
}

// member is one file's slot on the dataset time axis.
type member struct {
	key        string
	file       File
	time       time.Time
	featureLen int64
}

// Dataset maps each time-axis position to a file. No values are read until
// Series is called.
type Dataset struct {
	files      []*member
	featureLen int64
	index      map[int64]int64 // reach -> feature index in files[0]
}

// Len returns the number of time steps.
func (d *Dataset) Len() int { return len(d.files) }

// Keys returns the file keys in time order.
func (d *Dataset) Keys() []string {
	out := make([]string, len(d.files))
	for i, m := range d.files {
		out[i] = m.key
	}
	return out
}

// Times returns the time axis.
func (d *Dataset) Times() []time.Time {
	out := make([]time.Time, len(d.files))
	for i, m := range d.files {
		out[i] = m.time
	}
	return out
}

// Attr returns a global attribute of the first file on the time axis.
func (d *Dataset) Attr(name string) (any, bool) {
	if len(d.files) == 0 {
		return nil, false
	}
	return d.files[0].file.Attr(name)
}

// Series reads one reach's variable across the time axis.
func (d *Dataset) Series(ctx context.Context, reach int64, variable string) (domain.TimeSeries, error) {
	out := make(domain.TimeSeries, 0, len(d.files))
	for _, m := range d.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i, err := d.featureIndex(m, reach)
		if err != nil {
			return nil, err
		}
		v, err := m.file.Value(variable, i)
		if err != nil {
			return nil, fmt.Errorf("read %s[%d] from %s: %w", variable, i, m.key, err)
		}
		out = append(out, domain.Point{Time: m.time, Flow: v})
	}
	return out, nil
}

// featureIndex finds reach in m. The full feature axis is read once, from the
// first file; other files are checked at the same index and scanned only if
// their ordering differs.
func (d *Dataset) featureIndex(m *member, reach int64) (int64, error) {
	if d.index == nil {
		ids, err := d.files[0].file.Features()
		if err != nil {
			return 0, fmt.Errorf("read feature_id from %s: %w", d.files[0].key, err)
		}
		d.index = indexOf(ids)
	}
	i, ok := d.index[reach]
	if !ok {
		return 0, fmt.Errorf("%w: %d in %s", domain.ErrReachNotFound, reach, d.files[0].key)
	}
	if m == d.files[0] {
		return i, nil
	}

	id, err := m.file.FeatureAt(i)
	if err != nil {
		return 0, fmt.Errorf("read feature_id[%d] from %s: %w", i, m.key, err)
	}
	if id == reach {
		return i, nil
	}

	ids, err := m.file.Features()
	if err != nil {
		return 0, fmt.Errorf("read feature_id from %s: %w", m.key, err)
	}
	if j, ok := indexOf(ids)[reach]; ok {
		return j, nil
	}
	return 0, fmt.Errorf("%w: %d in %s", domain.ErrReachNotFound, reach, m.key)
}

func indexOf(ids []int64) map[int64]int64 {
	idx := make(map[int64]int64, len(ids))
	for i, id := range ids {
		idx[id] = int64(i)
	}
	return idx
}

// Close releases every file handle.
func (d *Dataset) Close() error {
	var errs []error
	for _, m := range d.files {
		if err := m.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", m.key, err))
		}
	}
	d.files = nil
	return errors.Join(errs...)
}
