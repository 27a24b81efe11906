package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
)

// Assembler builds a detached forecast for one request.
type Assembler interface {
	Assemble(ctx context.Context, req domain.ForecastRequest) (domain.Forecast, error)
}

// BatchLoader writes multiple forecasts to the destination. Every batch of
// one publish cycle carries the same run id.
type BatchLoader interface {
	LoadBatch(ctx context.Context, runID string, forecasts []domain.Forecast) error
}

// Config selects what each cycle publishes and how often.
type Config struct {
	Reaches     []int64
	Variant     domain.Variant
	AssimOffset int
	Interval    time.Duration
	Lag         time.Duration // how long after issuance a cycle is complete
	BatchSize   int
}

// Pipeline periodically assembles the latest forecast cycle for a fixed set
// of reaches and publishes the results.
type Pipeline struct {
	assembler Assembler
	loader    BatchLoader
	cfg       Config
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	lastCycle time.Time
}

// New creates a Pipeline. A nil clock uses real time.
func New(a Assembler, l BatchLoader, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Pipeline{
		assembler: a,
		loader:    l,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a cycle has been published, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published a forecast cycle yet")
	}
	return nil
}

// Run publishes a cycle immediately and then once per interval until the
// context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"reaches", len(p.cfg.Reaches),
		"variant", p.cfg.Variant.String(),
		"interval", p.cfg.Interval,
		"batch_size", p.cfg.BatchSize,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		if !p.RunCycle(ctx) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-p.clock.After(p.cfg.Interval):
		}
	}
}

// RunCycle assembles and publishes the newest complete cycle. A cycle that was
// already published is skipped. Returns false if the pipeline should stop.
func (p *Pipeline) RunCycle(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	start := time.Now()

	date, hour := domain.LatestCycle(p.clock.Now(), p.cfg.Lag, p.cfg.Variant)
	cycle := domain.ForecastRequest{Date: date, StartHour: hour}.Cycle()
	if cycle.Equal(p.lastCycle) {
		p.logger.Debug("cycle already published", "cycle", cycle)
		return true
	}

	forecasts := p.assembleAll(ctx, date, hour)
	if ctx.Err() != nil {
		return false
	}

	runID := uuid.NewString()
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second
	for i := 0; i < len(forecasts); i += p.cfg.BatchSize {
		batch := forecasts[i:min(i+p.cfg.BatchSize, len(forecasts))]
		if !p.load(ctx, runID, batch, &backoff, maxBackoff) {
			return false
		}
	}

	// A cycle where nothing assembled is retried on the next tick.
	if len(forecasts) > 0 {
		p.lastCycle = cycle
		p.ready.Store(true)
		p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}
	p.logger.Info("cycle published",
		"cycle", cycle,
		"run_id", runID,
		"published", len(forecasts),
		"failed", len(p.cfg.Reaches)-len(forecasts),
		"duration", time.Since(start),
	)
	return true
}

// assembleAll builds one forecast per configured reach. Failed reaches are
// logged and left out.
func (p *Pipeline) assembleAll(ctx context.Context, date string, hour int) []domain.Forecast {
	out := make([]domain.Forecast, 0, len(p.cfg.Reaches))
	for _, reach := range p.cfg.Reaches {
		if ctx.Err() != nil {
			return out
		}
		req, err := domain.NewForecastRequest(reach, date, hour, p.cfg.Variant, p.cfg.AssimOffset)
		if err != nil {
			p.logger.Warn("invalid request, skipping reach", "reach_id", reach, "error", err)
			continue
		}
		f, err := p.assembler.Assemble(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			p.logger.Warn("assemble failed, skipping reach", "reach_id", reach, "error", err)
			continue
		}
		out = append(out, f)
	}
	return out
}

// load writes one batch, retrying with backoff until it succeeds or the
// context ends. Returns false if the pipeline should stop.
func (p *Pipeline) load(ctx context.Context, runID string, batch []domain.Forecast, backoff *time.Duration, maxBackoff time.Duration) bool {
	for {
		err := p.loader.LoadBatch(ctx, runID, batch)
		if err == nil {
			p.metrics.ForecastsPublished.Add(float64(len(batch)))
			*backoff = 200 * time.Millisecond
			return true
		}
		p.metrics.PublishErrors.Inc()
		p.logger.Error("load batch failed", "error", err, "batch_size", len(batch))
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return false
		}
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}
