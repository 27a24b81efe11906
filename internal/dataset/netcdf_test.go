package dataset_test

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwm-streamflow/internal/dataset"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
	"github.com/couchcryptid/nwm-streamflow/internal/storage"
)

const fillValue = int32(-999900)

// channelFile is the content of one channel_rt file.
type channelFile struct {
	valid    time.Time
	features []int32
	flow     []int32 // packed, scale 0.01
	velocity []int32 // packed, scale 0.1 offset 1, missing -9999
}

func attrs(t *testing.T, keys []string, values map[string]any) api.AttributeMap {
	t.Helper()
	m, err := util.NewOrderedMap(keys, values)
	require.NoError(t, err)
	return m
}

// writeChannelFile writes f as a classic NetCDF file at root/path.
func writeChannelFile(t *testing.T, root, path string, f channelFile) {
	t.Helper()
	name := filepath.Join(root, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))

	cw, err := cdf.OpenWriter(name)
	require.NoError(t, err)

	require.NoError(t, cw.AddGlobalAttrs(attrs(t,
		[]string{"model_output_type"},
		map[string]any{"model_output_type": "channel_rt"})))

	require.NoError(t, cw.AddVar("time", api.Variable{
		Values:     []int32{int32(f.valid.Unix() / 60)},
		Dimensions: []string{"time"},
		Attributes: attrs(t,
			[]string{"units"},
			map[string]any{"units": "minutes since 1970-01-01 00:00:00 UTC"}),
	}))
	require.NoError(t, cw.AddVar("feature_id", api.Variable{
		Values:     f.features,
		Dimensions: []string{"feature_id"},
	}))
	require.NoError(t, cw.AddVar("streamflow", api.Variable{
		Values:     f.flow,
		Dimensions: []string{"feature_id"},
		Attributes: attrs(t,
			[]string{"_FillValue", "scale_factor"},
			map[string]any{"_FillValue": fillValue, "scale_factor": 0.01}),
	}))
	require.NoError(t, cw.AddVar("velocity", api.Variable{
		Values:     f.velocity,
		Dimensions: []string{"feature_id"},
		Attributes: attrs(t,
			[]string{"missing_value", "scale_factor", "add_offset"},
			map[string]any{"missing_value": int32(-9999), "scale_factor": 0.1, "add_offset": 1.0}),
	}))
	require.NoError(t, cw.Close())
}

// writeShortRange mirrors the first three short range files for a cycle and
// returns their keys in lead order.
func writeShortRange(t *testing.T, root string) (keys []string, cycle time.Time) {
	t.Helper()
	req := mustShortRange(t)
	cycle = req.Cycle()
	keys = domain.DefaultLayout().Build(req)[0][:3]

	files := []channelFile{
		{cycle.Add(1 * time.Hour), []int32{101, 202, 303}, []int32{10, 125, 30}, []int32{5, 20, 5}},
		{cycle.Add(2 * time.Hour), []int32{101, 202, 303}, []int32{11, 250, 31}, []int32{5, -9999, 5}},
		// reordered feature axis
		{cycle.Add(3 * time.Hour), []int32{303, 101, 202}, []int32{32, 12, fillValue}, []int32{5, 5, 40}},
	}
	for i, f := range files {
		writeChannelFile(t, root, keys[i], f)
	}
	return keys, cycle
}

func newLocalOpener(root string) *dataset.Opener {
	metrics := observability.NewMetricsForTesting()
	store := storage.New(storage.NewLocal(root), storage.Options{BlockSize: 512, CacheSize: 4}, slog.Default(), metrics)
	return dataset.NewOpener(store, slog.Default(), metrics)
}

func TestDecodeNetCDF_SeriesInTimeOrder(t *testing.T) {
	root := t.TempDir()
	keys, cycle := writeShortRange(t, root)

	shuffled := []string{keys[2], keys[0], keys[1]}
	ds, err := newLocalOpener(root).Open(context.Background(), shuffled)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	require.Equal(t, 3, ds.Len())
	assert.Equal(t, keys, ds.Keys())
	times := ds.Times()
	for i, tm := range times {
		assert.True(t, tm.Equal(cycle.Add(time.Duration(i+1)*time.Hour)), "step %d at %s", i, tm)
	}

	ts, err := ds.Series(context.Background(), 202, dataset.Streamflow)
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.InDelta(t, 1.25, ts[0].Flow, 1e-9)
	assert.InDelta(t, 2.5, ts[1].Flow, 1e-9)
	assert.True(t, math.IsNaN(ts[2].Flow), "_FillValue decodes as NaN")
	for i := range ts {
		assert.True(t, ts[i].Time.Equal(times[i]))
	}

	other, err := ds.Series(context.Background(), 101, dataset.Streamflow)
	require.NoError(t, err)
	assert.InDelta(t, 0.12, other[2].Flow, 1e-9, "reach found on the reordered axis")
}

func TestDecodeNetCDF_MissingValueAndOffset(t *testing.T) {
	root := t.TempDir()
	keys, _ := writeShortRange(t, root)

	ds, err := newLocalOpener(root).Open(context.Background(), keys)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	ts, err := ds.Series(context.Background(), 202, "velocity")
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.InDelta(t, 3.0, ts[0].Flow, 1e-9)
	assert.True(t, math.IsNaN(ts[1].Flow), "missing_value decodes as NaN")
	assert.InDelta(t, 5.0, ts[2].Flow, 1e-9)
}

func TestDecodeNetCDF_AttrAndUnknownReach(t *testing.T) {
	root := t.TempDir()
	keys, _ := writeShortRange(t, root)

	ds, err := newLocalOpener(root).Open(context.Background(), keys)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	v, ok := ds.Attr("model_output_type")
	require.True(t, ok)
	assert.Equal(t, "channel_rt", v)

	_, err = ds.Series(context.Background(), 999, dataset.Streamflow)
	assert.ErrorIs(t, err, domain.ErrReachNotFound)
}

func TestDecodeNetCDF_MissingKey(t *testing.T) {
	root := t.TempDir()
	keys, _ := writeShortRange(t, root)

	missing := domain.DefaultLayout().Build(mustShortRange(t))[0][3]
	_, err := newLocalOpener(root).Open(context.Background(), append(keys, missing))
	assert.ErrorIs(t, err, domain.ErrRemoteObjectNotFound)
}

func mustShortRange(t *testing.T) domain.ForecastRequest {
	t.Helper()
	req, err := domain.NewForecastRequest(202, "20240601", 6, domain.ShortRange, 0)
	require.NoError(t, err)
	return req
}
