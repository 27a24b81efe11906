package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for remote
// dataset access and the forecast publisher.
type Metrics struct {
	// Object storage metrics.
	ObjectsOpened prometheus.Counter
	RangeRequests prometheus.Counter
	BytesFetched  prometheus.Counter
	FetchDuration prometheus.Histogram
	BlockCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Dataset and assembly metrics.
	DatasetFiles     prometheus.Histogram
	AssembleDuration *prometheus.HistogramVec // labels: variant
	AssembleErrors   *prometheus.CounterVec   // labels: variant

	// Download metrics.
	Downloads *prometheus.CounterVec // labels: status={downloaded,skipped,failed}

	// Publisher metrics.
	ForecastsPublished prometheus.Counter
	PublishErrors      prometheus.Counter
	PipelineRunning    prometheus.Gauge
	CycleDuration      prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ObjectsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm",
			Name:      "objects_opened_total",
			Help:      "Remote objects opened as lazy byte streams.",
		}),
		RangeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm",
			Name:      "range_requests_total",
			Help:      "Ranged reads issued against object storage.",
		}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm",
			Name:      "bytes_fetched_total",
			Help:      "Bytes transferred by ranged reads.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwm",
			Name:      "range_fetch_duration_seconds",
			Help:      "Duration of a single ranged read.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		BlockCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwm",
			Name:      "block_cache_total",
			Help:      "Block cache lookups by result.",
		}, []string{"result"}),
		DatasetFiles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwm",
			Name:      "dataset_files",
			Help:      "Number of files concatenated into one dataset.",
			Buckets:   []float64{1, 2, 6, 12, 18, 24, 48, 68, 100, 500},
		}),
		AssembleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nwm",
			Name:      "assemble_duration_seconds",
			Help:      "Duration of a complete forecast assembly.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"variant"}),
		AssembleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwm",
			Name:      "assemble_errors_total",
			Help:      "Forecast assemblies that failed.",
		}, []string{"variant"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwm",
			Name:      "downloads_total",
			Help:      "Per-file download outcomes.",
		}, []string{"status"}),
		ForecastsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm",
			Name:      "forecasts_published_total",
			Help:      "Assembled forecasts written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm",
			Name:      "publish_errors_total",
			Help:      "Failed writes to the sink topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nwm",
			Name:      "pipeline_running",
			Help:      "1 when the publisher is active, 0 when shut down.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwm",
			Name:      "publish_cycle_duration_seconds",
			Help:      "Duration of one assemble-and-publish cycle.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
	}

	prometheus.MustRegister(
		m.ObjectsOpened,
		m.RangeRequests,
		m.BytesFetched,
		m.FetchDuration,
		m.BlockCache,
		m.DatasetFiles,
		m.AssembleDuration,
		m.AssembleErrors,
		m.Downloads,
		m.ForecastsPublished,
		m.PublishErrors,
		m.PipelineRunning,
		m.CycleDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with no registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ObjectsOpened:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm", Name: "objects_opened_total"}),
		RangeRequests:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm", Name: "range_requests_total"}),
		BytesFetched:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm", Name: "bytes_fetched_total"}),
		FetchDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "nwm", Name: "range_fetch_duration_seconds"}),
		BlockCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "nwm", Name: "block_cache_total"}, []string{"result"}),
		DatasetFiles:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "nwm", Name: "dataset_files"}),
		AssembleDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "nwm", Name: "assemble_duration_seconds"}, []string{"variant"}),
		AssembleErrors:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "nwm", Name: "assemble_errors_total"}, []string{"variant"}),
		Downloads:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "nwm", Name: "downloads_total"}, []string{"status"}),
		ForecastsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm", Name: "forecasts_published_total"}),
		PublishErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm", Name: "publish_errors_total"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "nwm", Name: "pipeline_running"}),
		CycleDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "nwm", Name: "publish_cycle_duration_seconds"}),
	}
}
