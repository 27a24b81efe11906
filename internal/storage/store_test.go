package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend wraps Local and records ranged reads.
type countingBackend struct {
	*Local
	ranges [][2]int64
}

func (b *countingBackend) ReadRange(ctx context.Context, bucket, key string, off, n int64) ([]byte, error) {
	b.ranges = append(b.ranges, [2]int64{off, n})
	return b.Local.ReadRange(ctx, bucket, key, off, n)
}

func writeObject(t *testing.T, root, bucket, key string, data []byte) {
	t.Helper()
	p := filepath.Join(root, bucket, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func newTestStore(t *testing.T, blockSize int64, cacheSize int) (*Store, *countingBackend, string) {
	t.Helper()
	root := t.TempDir()
	backend := &countingBackend{Local: NewLocal(root)}
	s := New(backend, Options{BlockSize: blockSize, CacheSize: cacheSize, BackendTag: "test"},
		slog.Default(), observability.NewMetricsForTesting())
	return s, backend, root
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in, bucket, key string
	}{
		{"national-water-model/nwm.20240601/short_range/x.nc", "national-water-model", "nwm.20240601/short_range/x.nc"},
		{"s3://noaa-nwm-pds/nwm.20240601/a.nc", "noaa-nwm-pds", "nwm.20240601/a.nc"},
		{"gs://bucket/key", "bucket", "key"},
		{"gcs://bucket/key", "bucket", "key"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, key, err := SplitPath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}

	for _, bad := range []string{"", "bucket", "bucket/", "/key"} {
		_, _, err := SplitPath(bad)
		assert.ErrorIs(t, err, domain.ErrPathConstruction, bad)
	}
}

func TestOpen_ReadsLazilyInBlocks(t *testing.T) {
	s, backend, root := newTestStore(t, 4, 8)
	writeObject(t, root, "b", "dir/obj.nc", []byte("0123456789"))

	obj, err := s.Open(context.Background(), "b/dir/obj.nc")
	require.NoError(t, err)
	defer obj.Close()

	assert.Equal(t, int64(10), obj.Size())
	assert.Equal(t, "b/dir/obj.nc", obj.Path())
	assert.Empty(t, backend.ranges, "open should not fetch data")

	_, err = obj.Seek(5, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = io.ReadFull(obj, buf)
	require.NoError(t, err)
	assert.Equal(t, "56", string(buf))
	assert.Equal(t, [][2]int64{{4, 4}}, backend.ranges)

	// same block again is served from cache
	_, err = obj.Seek(4, io.SeekStart)
	require.NoError(t, err)
	_, err = io.ReadFull(obj, buf)
	require.NoError(t, err)
	assert.Equal(t, "45", string(buf))
	assert.Len(t, backend.ranges, 1)
}

func TestOpen_ReadAllAcrossBlocks(t *testing.T) {
	s, backend, root := newTestStore(t, 4, 8)
	writeObject(t, root, "b", "obj", []byte("0123456789"))

	obj, err := s.Open(context.Background(), "b/obj")
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.Equal(t, [][2]int64{{0, 4}, {4, 4}, {8, 2}}, backend.ranges)
}

func TestOpen_SeekEnd(t *testing.T) {
	s, _, root := newTestStore(t, 4, 8)
	writeObject(t, root, "b", "obj", []byte("0123456789"))

	obj, err := s.Open(context.Background(), "b/obj")
	require.NoError(t, err)
	defer obj.Close()

	pos, err := obj.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "789", string(data))

	_, err = obj.Seek(-20, io.SeekCurrent)
	assert.Error(t, err)
}

func TestOpen_ClosedReadFails(t *testing.T) {
	s, _, root := newTestStore(t, 4, 8)
	writeObject(t, root, "b", "obj", []byte("01"))

	obj, err := s.Open(context.Background(), "b/obj")
	require.NoError(t, err)
	require.NoError(t, obj.Close())

	_, err = obj.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestOpen_MissingObject(t *testing.T) {
	s, _, _ := newTestStore(t, 4, 8)

	_, err := s.Open(context.Background(), "b/nope.nc")
	assert.ErrorIs(t, err, domain.ErrRemoteObjectNotFound)

	_, err = s.Get(context.Background(), "b/nope.nc")
	assert.ErrorIs(t, err, domain.ErrRemoteObjectNotFound)
}

func TestStore_GetAndList(t *testing.T) {
	s, _, root := newTestStore(t, 4, 8)
	writeObject(t, root, "b", "2024/202406010000.CHRTOUT_DOMAIN1.comp", []byte("x"))
	writeObject(t, root, "b", "2024/202406010100.CHRTOUT_DOMAIN1.comp", []byte("y"))
	writeObject(t, root, "b", "2023/202306010000.CHRTOUT_DOMAIN1.comp", []byte("z"))

	keys, err := s.List(context.Background(), "b", "2024/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024/202406010000.CHRTOUT_DOMAIN1.comp",
		"2024/202406010100.CHRTOUT_DOMAIN1.comp",
	}, keys)

	rc, err := s.Get(context.Background(), "b/2023/202306010000.CHRTOUT_DOMAIN1.comp")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "z", string(data))

	keys, err = s.List(context.Background(), "missing-bucket", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
