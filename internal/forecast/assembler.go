package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

// Assembler turns requests into detached Forecasts.
type Assembler struct {
	src Source
}

// NewAssembler creates an Assembler over src.
func NewAssembler(src Source) *Assembler {
	return &Assembler{src: src}
}

// Assemble opens the anchor and the requested product, extracts the reach's
// series and closes every remote handle before returning.
func (a *Assembler) Assemble(ctx context.Context, req domain.ForecastRequest) (domain.Forecast, error) {
	start := time.Now()
	variant := req.Variant.String()

	f, err := a.assemble(ctx, req)
	a.src.Metrics.AssembleDuration.WithLabelValues(variant).Observe(time.Since(start).Seconds())
	if err != nil {
		a.src.Metrics.AssembleErrors.WithLabelValues(variant).Inc()
		return domain.Forecast{}, fmt.Errorf("assemble %s for reach %d at %s t%sz: %w",
			variant, req.ReachID, req.Date, req.StartHourString(), err)
	}

	a.src.Logger.Info("forecast assembled",
		"reach_id", req.ReachID,
		"variant", variant,
		"cycle", req.Cycle(),
		"members", len(f.Members),
		"duration", time.Since(start),
	)
	return f, nil
}

func (a *Assembler) assemble(ctx context.Context, req domain.ForecastRequest) (domain.Forecast, error) {
	anchor, err := a.anchor(ctx, req)
	if err != nil {
		return domain.Forecast{}, err
	}
	out := domain.Forecast{Request: req, Anchor: anchor}

	switch req.Variant {
	case domain.Assimilation:
		out.Members = []domain.MemberSeries{{Label: req.Variant.String(), Series: domain.TimeSeries{anchor}}}

	case domain.ShortRange:
		sr, err := OpenShortRange(ctx, a.src, req)
		if err != nil {
			return domain.Forecast{}, err
		}
		defer sr.Close()
		series, err := sr.Streamflow(ctx, anchor)
		if err != nil {
			return domain.Forecast{}, err
		}
		out.Members = []domain.MemberSeries{{Label: req.Variant.String(), Series: series}}

	case domain.MediumRangeEnsemble:
		mr, err := OpenMediumRange(ctx, a.src, req)
		if err != nil {
			return domain.Forecast{}, err
		}
		defer mr.Close()
		ens, err := mr.Streamflow(ctx, anchor)
		if err != nil {
			return domain.Forecast{}, err
		}
		out.Members, out.Mean = ens.Members, ens.Mean

	default:
		return domain.Forecast{}, fmt.Errorf("%w: unknown variant %d", domain.ErrPathConstruction, int(req.Variant))
	}

	out.AssembledAt = domain.Now()
	return out, nil
}

func (a *Assembler) anchor(ctx context.Context, req domain.ForecastRequest) (domain.Point, error) {
	aa, err := OpenAssimilation(ctx, a.src, req)
	if err != nil {
		return domain.Point{}, fmt.Errorf("anchor: %w", err)
	}
	defer aa.Close()
	return aa.Anchor(ctx)
}
