package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

// GCS reads the public NWM buckets on Google Cloud (national-water-model,
// national-water-model-v2) without credentials.
type GCS struct {
	client *gstorage.Client
}

// NewGCS creates an unauthenticated Cloud Storage backend.
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := gstorage.NewClient(ctx, option.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Close releases the underlying client.
func (b *GCS) Close() error {
	return b.client.Close()
}

func (b *GCS) Stat(ctx context.Context, bucket, key string) (int64, error) {
	attrs, err := b.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		return 0, mapGCSError(bucket, key, err)
	}
	return attrs.Size, nil
}

func (b *GCS) ReadRange(ctx context.Context, bucket, key string, off, n int64) ([]byte, error) {
	r, err := b.client.Bucket(bucket).Object(key).NewRangeReader(ctx, off, n)
	if err != nil {
		return nil, mapGCSError(bucket, key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *GCS) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	r, err := b.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError(bucket, key, err)
	}
	return r, nil
}

func (b *GCS) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	it := b.client.Bucket(bucket).Objects(ctx, &gstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func mapGCSError(bucket, key string, err error) error {
	if errors.Is(err, gstorage.ErrObjectNotExist) || errors.Is(err, gstorage.ErrBucketNotExist) {
		return fmt.Errorf("%w: gs://%s/%s", domain.ErrRemoteObjectNotFound, bucket, key)
	}
	return fmt.Errorf("gs://%s/%s: %w", bucket, key, err)
}
