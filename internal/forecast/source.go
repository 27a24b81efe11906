// Package forecast assembles NWM products for one reach: the analysis
// assimilation anchor, the deterministic short range run and the medium range
// ensemble.
package forecast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/nwm-streamflow/internal/dataset"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/download"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
)

// Source bundles what every product reader needs.
type Source struct {
	Opener     *dataset.Opener
	Downloader *download.Downloader
	Layout     domain.Layout
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// product is the request and path set shared by every reader.
type product struct {
	src   Source
	req   domain.ForecastRequest
	paths domain.PathSet
}

func newProduct(src Source, req domain.ForecastRequest) product {
	return product{src: src, req: req, paths: src.Layout.Build(req)}
}

// Request returns the request the product was opened for.
func (p product) Request() domain.ForecastRequest { return p.req }

// Paths returns the remote keys backing the product.
func (p product) Paths() domain.PathSet { return p.paths }

// NumFiles returns the number of remote files.
func (p product) NumFiles() int { return p.paths.Len() }

// CopyToLocal downloads every file of the product into dir, one transfer per
// path, and verifies that all of them arrived.
func (p product) CopyToLocal(ctx context.Context, dir string) ([]download.Result, error) {
	if p.src.Downloader == nil {
		return nil, fmt.Errorf("copy %s to %s: no downloader configured", p.req.Variant, dir)
	}
	results, err := p.src.Downloader.Download(ctx, p.paths.Flatten(), dir)
	if err != nil {
		return results, err
	}
	return results, download.Verify(results, dir)
}
