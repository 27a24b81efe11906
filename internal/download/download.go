// Package download copies remote NWM files to a local directory in parallel.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
)

// Status is the outcome of one file transfer.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// Result reports what happened to one requested key.
type Result struct {
	Key    string
	Path   string
	Status Status
	Err    error
}

// Getter streams whole objects by "bucket/key" path.
type Getter interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// Downloader fetches files with a bounded number of concurrent transfers.
type Downloader struct {
	store   Getter
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Downloader. A non-positive workers value uses twice the CPU
// count.
func New(store Getter, workers int, logger *slog.Logger, metrics *observability.Metrics) *Downloader {
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}
	return &Downloader{store: store, workers: workers, logger: logger, metrics: metrics}
}

// Download writes each key to dir under its base name. Files already present
// are skipped. A failed file does not stop the others; every key gets a
// Result in the order given. The error is non-nil only when dir cannot be
// created or ctx is cancelled.
func (d *Downloader) Download(ctx context.Context, keys []string, dir string) ([]Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	results := make([]Result, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, key := range keys {
		g.Go(func() error {
			results[i] = d.fetch(gctx, key, dir)
			d.metrics.Downloads.WithLabelValues(string(results[i].Status)).Inc()
			if results[i].Err != nil {
				d.logger.Warn("download failed", "key", key, "error", results[i].Err)
			}
			// Failures stay in the result; siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("download finished", "dir", dir, "requested", len(keys), "summary", Summarize(results))
	return results, ctx.Err()
}

func (d *Downloader) fetch(ctx context.Context, key, dir string) Result {
	dest := filepath.Join(dir, path.Base(key))
	res := Result{Key: key, Path: dest}

	if _, err := os.Stat(dest); err == nil {
		res.Status = StatusSkipped
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	if err := d.transfer(ctx, key, dest); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	res.Status = StatusDownloaded
	return res
}

// transfer streams key into a temp file beside dest and renames it into place, so
// a partial transfer never looks like a finished file.
func (d *Downloader) transfer(ctx context.Context, key, dest string) (err error) {
	rc, err := d.store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename %s: %w", dest, err)
	}
	return nil
}

// Summarize counts results by status, e.g. "downloaded=3 skipped=1 failed=0".
func Summarize(results []Result) string {
	counts := map[Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	return fmt.Sprintf("downloaded=%d skipped=%d failed=%d",
		counts[StatusDownloaded], counts[StatusSkipped], counts[StatusFailed])
}

// Verify checks that every requested file exists in dir.
func Verify(results []Result, dir string) error {
	var missing []string
	for _, r := range results {
		p := r.Path
		if p == "" {
			p = filepath.Join(dir, path.Base(r.Key))
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, r.Key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %d of %d files missing in %s: %s",
			domain.ErrDownloadVerification, len(missing), len(results), dir, strings.Join(missing, ", "))
	}
	return nil
}
