package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/nwm-streamflow/internal/config"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
)

// FromConfig builds the Store selected by STORAGE_BACKEND. The returned
// closer releases backend clients.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Store, io.Closer, error) {
	return ForBackend(ctx, cfg, cfg.StorageBackend, logger, metrics)
}

// ForBackend builds a Store over the named backend, taking region, local
// root and reader tuning from cfg.
func ForBackend(ctx context.Context, cfg *config.Config, backend string, logger *slog.Logger, metrics *observability.Metrics) (*Store, io.Closer, error) {
	opts := Options{
		BlockSize:  cfg.BlockSize,
		CacheSize:  cfg.BlockCacheSize,
		BackendTag: backend,
	}

	switch backend {
	case config.BackendGCS:
		b, err := NewGCS(ctx)
		if err != nil {
			return nil, nil, err
		}
		return New(b, opts, logger, metrics), b, nil
	case config.BackendS3:
		b, err := NewS3(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, err
		}
		return New(b, opts, logger, metrics), noopCloser{}, nil
	case config.BackendLocal:
		return New(NewLocal(cfg.LocalRoot), opts, logger, metrics), noopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// noopCloser is returned for backends without client resources.
type noopCloser struct{}

func (noopCloser) Close() error { return nil }
