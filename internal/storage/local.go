package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

// Local serves a mirrored bucket tree from disk: root/<bucket>/<key>.
type Local struct {
	Root string
}

// NewLocal creates a Local backend rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{Root: dir}
}

func (l *Local) file(bucket, key string) string {
	return filepath.Join(l.Root, bucket, filepath.FromSlash(key))
}

func (l *Local) Stat(_ context.Context, bucket, key string) (int64, error) {
	fi, err := os.Stat(l.file(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s/%s", domain.ErrRemoteObjectNotFound, bucket, key)
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (l *Local) ReadRange(_ context.Context, bucket, key string, off, n int64) ([]byte, error) {
	f, err := os.Open(l.file(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrRemoteObjectNotFound, bucket, key)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

func (l *Local) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.file(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrRemoteObjectNotFound, bucket, key)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// List walks the bucket directory and returns slash-separated keys that start
// with prefix.
func (l *Local) List(_ context.Context, bucket, prefix string) ([]string, error) {
	base := filepath.Join(l.Root, bucket)
	var keys []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}
