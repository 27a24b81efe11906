// Package storage reads NWM objects from cloud buckets or a local mirror.
//
// Objects are opened as seekable byte streams that fetch fixed-size blocks on
// demand, so a NetCDF decoder only transfers the header and the values it
// actually reads.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
)

// Backend is the minimal object API a bucket provider must offer.
// Implementations return an error wrapping domain.ErrRemoteObjectNotFound for
// keys that do not exist.
type Backend interface {
	Stat(ctx context.Context, bucket, key string) (int64, error)
	ReadRange(ctx context.Context, bucket, key string, off, n int64) ([]byte, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Object is an open remote object. It satisfies the netcdf ReadSeekerCloser.
type Object interface {
	io.ReadSeeker
	io.Closer
	Path() string
	Size() int64
}

// Options tunes the lazy reader.
type Options struct {
	BlockSize  int64 // bytes per ranged read
	CacheSize  int   // blocks kept per open object
	BackendTag string
}

// Store opens bucket paths ("bucket/key") through a Backend.
type Store struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Store.
func New(backend Backend, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Store {
	if opts.BlockSize <= 0 {
		opts.BlockSize = 1 << 20
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	return &Store{backend: backend, opts: opts, logger: logger, metrics: metrics}
}

// SplitPath splits "bucket/key" into its parts. An "s3://" or "gs://" scheme
// prefix is ignored.
func SplitPath(p string) (bucket, key string, err error) {
	for _, scheme := range []string{"s3://", "gs://", "gcs://"} {
		p = strings.TrimPrefix(p, scheme)
	}
	p = strings.TrimPrefix(p, "/")
	bucket, key, ok := strings.Cut(p, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: path %q is not bucket/key", domain.ErrPathConstruction, p)
	}
	return bucket, key, nil
}

// Open returns a lazy handle on the object. Only its size is fetched here.
func (s *Store) Open(ctx context.Context, path string) (Object, error) {
	bucket, key, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	size, err := s.backend.Stat(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.metrics.ObjectsOpened.Inc()
	s.logger.Debug("object opened", "path", path, "size", size, "backend", s.opts.BackendTag)
	return newRangeReader(ctx, s, path, bucket, key, size), nil
}

// Get streams the whole object.
func (s *Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	rc, err := s.backend.Get(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return rc, nil
}

// List returns the keys under prefix, relative to the bucket.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	return s.backend.List(ctx, bucket, prefix)
}
