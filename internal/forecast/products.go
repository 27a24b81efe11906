package forecast

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/couchcryptid/nwm-streamflow/internal/dataset"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

// memberAttr is the global attribute carrying an ensemble member's number.
const memberAttr = "ensemble_member_number"

// Assimilation is the analysis assimilation snapshot used as a forecast
// anchor.
type Assimilation struct {
	product
	ds *dataset.Dataset
}

// OpenAssimilation opens the analysis file for req's cycle and assimilation
// offset, whatever req's own variant is.
func OpenAssimilation(ctx context.Context, src Source, req domain.ForecastRequest) (*Assimilation, error) {
	p := newProduct(src, req.WithVariant(domain.Assimilation))
	ds, err := src.Opener.Open(ctx, p.paths.Flatten())
	if err != nil {
		return nil, err
	}
	return &Assimilation{product: p, ds: ds}, nil
}

// Time returns the analysis valid time.
func (a *Assimilation) Time() time.Time {
	return a.ds.Times()[0]
}

// Flow returns the analysed streamflow at the reach, NaN when missing.
func (a *Assimilation) Flow(ctx context.Context) (float64, error) {
	series, err := a.ds.Series(ctx, a.req.ReachID, dataset.Streamflow)
	if err != nil {
		return 0, err
	}
	return series[0].Flow, nil
}

// Anchor returns the analysis as a single point.
func (a *Assimilation) Anchor(ctx context.Context) (domain.Point, error) {
	flow, err := a.Flow(ctx)
	if err != nil {
		return domain.Point{}, err
	}
	return domain.Point{Time: a.Time(), Flow: flow}, nil
}

func (a *Assimilation) Close() error { return a.ds.Close() }

// ShortRange is the 18 hour deterministic forecast.
type ShortRange struct {
	product
	ds *dataset.Dataset
}

// OpenShortRange opens all 18 hourly files of req's cycle.
func OpenShortRange(ctx context.Context, src Source, req domain.ForecastRequest) (*ShortRange, error) {
	p := newProduct(src, req.WithVariant(domain.ShortRange))
	ds, err := src.Opener.Open(ctx, p.paths.Flatten())
	if err != nil {
		return nil, err
	}
	return &ShortRange{product: p, ds: ds}, nil
}

// Streamflow reads the reach's forecast and merges the anchor in front of it.
func (s *ShortRange) Streamflow(ctx context.Context, anchor domain.Point) (domain.TimeSeries, error) {
	series, err := s.ds.Series(ctx, s.req.ReachID, dataset.Streamflow)
	if err != nil {
		return nil, err
	}
	return domain.Merge(anchor, series), nil
}

func (s *ShortRange) Close() error { return s.ds.Close() }

// MediumRange is the seven member medium range ensemble. Each member is its
// own dataset.
type MediumRange struct {
	product
	members []*dataset.Dataset
}

// OpenMediumRange opens every member of req's cycle. If any member fails the
// members already opened are closed.
func OpenMediumRange(ctx context.Context, src Source, req domain.ForecastRequest) (*MediumRange, error) {
	p := newProduct(src, req.WithVariant(domain.MediumRangeEnsemble))
	mr := &MediumRange{product: p, members: make([]*dataset.Dataset, 0, len(p.paths))}
	for i, keys := range p.paths {
		ds, err := src.Opener.Open(ctx, keys)
		if err != nil {
			_ = mr.Close()
			return nil, fmt.Errorf("member %d: %w", i+1, err)
		}
		mr.members = append(mr.members, ds)
	}
	return mr, nil
}

// Streamflow reads every member's series for the reach, merges the anchor into
// each and derives the ensemble mean.
func (m *MediumRange) Streamflow(ctx context.Context, anchor domain.Point) (domain.EnsembleSeries, error) {
	members := make([]domain.MemberSeries, 0, len(m.members))
	for i, ds := range m.members {
		series, err := ds.Series(ctx, m.req.ReachID, dataset.Streamflow)
		if err != nil {
			return domain.EnsembleSeries{}, fmt.Errorf("member %d: %w", i+1, err)
		}
		members = append(members, domain.MemberSeries{Label: memberLabel(ds, i+1), Series: series})
	}
	return domain.NewEnsembleSeries(anchor, members), nil
}

func (m *MediumRange) Close() error {
	var errs []error
	for _, ds := range m.members {
		errs = append(errs, ds.Close())
	}
	m.members = nil
	return errors.Join(errs...)
}

// memberLabel prefers the file's own member number over the position in the
// path set.
func memberLabel(ds *dataset.Dataset, index int) string {
	v, ok := ds.Attr(memberAttr)
	if !ok {
		return strconv.Itoa(index)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		if rv.Len() != 1 {
			return strconv.Itoa(index)
		}
		rv = rv.Index(0)
	}
	switch {
	case rv.CanInt():
		return strconv.FormatInt(rv.Int(), 10)
	case rv.CanUint():
		return strconv.FormatUint(rv.Uint(), 10)
	case rv.CanFloat():
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case rv.Kind() == reflect.String && rv.String() != "":
		return rv.String()
	}
	return strconv.Itoa(index)
}
