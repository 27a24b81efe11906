package main

import (
	"bytes"
	"context"
	"flag"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwm-streamflow/internal/config"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

func TestHelp_ListsCommands(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, help(&buf, nil))
	for _, cmd := range commands {
		assert.Contains(t, buf.String(), cmd.Name)
	}
}

func TestHelp_Topic(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, help(&buf, []string{"help", "reanalysis"}))
	assert.Contains(t, buf.String(), "usage: nwm reanalysis")
	assert.Contains(t, buf.String(), "-freq")
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.Equal(t, 2, run([]string{"nope"}))
}

func TestRequestFlags_Explicit(t *testing.T) {
	var f requestFlags
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	f.register(fs, true)
	require.NoError(t, fs.Parse([]string{"-reach", "101", "-variant", "medium_range", "-date", "20240601", "-hour", "6"}))

	req, err := f.request()
	require.NoError(t, err)
	assert.Equal(t, int64(101), req.ReachID)
	assert.Equal(t, domain.MediumRangeEnsemble, req.Variant)
	assert.Equal(t, "20240601", req.Date)
	assert.Equal(t, 6, req.StartHour)
}

func TestRequestFlags_DefaultCycleMediumRange(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 13, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	var f requestFlags
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	f.register(fs, true)
	require.NoError(t, fs.Parse([]string{"-reach", "101", "-variant", "medium_range", "-lag", "2h"}))

	req, err := f.request()
	require.NoError(t, err)
	assert.Equal(t, "20240601", req.Date)
	assert.Equal(t, 6, req.StartHour)
}

func TestRequestFlags_InvalidVariant(t *testing.T) {
	var f requestFlags
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	f.register(fs, false)
	require.NoError(t, fs.Parse([]string{"-variant", "long_range"}))

	_, err := f.request()
	assert.Error(t, err)
}

func TestWriteCSV_MissingFlowIsEmpty(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := appendRows(nil, "member 1", domain.TimeSeries{
		{Time: t0, Flow: 1.5},
		{Time: t0.Add(time.Hour), Flow: math.NaN()},
	})

	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, rows))
	assert.Equal(t,
		"series,time,streamflow\n"+
			"member 1,2024-06-01T00:00:00Z,1.5\n"+
			"member 1,2024-06-01T01:00:00Z,\n",
		buf.String())
}

func TestReport_FailsOnErrors(t *testing.T) {
	req := domain.ForecastRequest{Date: "20240601", StartHour: 6, Variant: domain.ShortRange}
	ok := &phase{name: "object keys"}
	bad := &phase{name: "dataset open"}
	bad.errorf("group %d: %s", 1, "boom")

	assert.NoError(t, report(req, 18, []*phase{ok}))
	assert.EqualError(t, report(req, 18, []*phase{ok, bad}), "1 of 2 phases failed")
}

func TestReanalysisBackend_PerSource(t *testing.T) {
	cfg := &config.Config{
		StorageBackend:       config.BackendLocal,
		ReanalysisBackend:    config.BackendS3,
		ReanalysisAltBackend: config.BackendGCS,
	}
	tests := []struct {
		source  string
		want    string
		wantErr bool
	}{
		{source: "archive", want: config.BackendS3},
		{source: "v2", want: config.BackendGCS},
		{source: "retro", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := reanalysisBackend(cfg, tt.source)
			if tt.wantErr {
				assert.ErrorContains(t, err, tt.source)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReanalysisEnv_ReadsSourceBackend(t *testing.T) {
	root := t.TempDir()
	key := "2010/201001010000.CHRTOUT_DOMAIN1.comp"
	p := filepath.Join(root, "nwm-archive", filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("chrtout"), 0o644))

	// STORAGE_BACKEND points elsewhere; only the archive override is local.
	cfg := &config.Config{
		StorageBackend:       "azure",
		ReanalysisBackend:    config.BackendLocal,
		ReanalysisAltBackend: config.BackendGCS,
		LocalRoot:            root,
		DownloadWorkers:      1,
	}
	backend, err := reanalysisBackend(cfg, "archive")
	require.NoError(t, err)

	e, err := openEnv(context.Background(), cfg, backend)
	require.NoError(t, err)
	defer e.Close()

	keys, err := e.store.List(context.Background(), "nwm-archive", "2010/")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}
