package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the sync
// service.
type Metrics struct {
	FilesFetched prometheus.Counter
	FetchErrors  *prometheus.CounterVec // labels: transport={mirror,sftp,opendata}
	SyncRunning  prometheus.Gauge

	// Migration metrics.
	MigrationsCompleted *prometheus.CounterVec // labels: source
	MigrationErrors     prometheus.Counter
	UndersizedDeleted   prometheus.Counter
	SyncDuration        prometheus.Histogram

	// Forecast generation metrics.
	GenerationRuns     *prometheus.CounterVec // labels: model, outcome={success,error}
	GenerationDuration prometheus.Histogram

	EventsPublished prometheus.Counter
}

// NewMetrics creates and registers all sync metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FilesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_sync",
			Name:      "files_fetched_total",
			Help:      "Total dataset files fetched from any remote provider.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_sync",
			Name:      "fetch_errors_total",
			Help:      "Fetch failures by transport.",
		}, []string{"transport"}),
		SyncRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forecast_sync",
			Name:      "sync_running",
			Help:      "1 while a sync pass is active, 0 otherwise.",
		}),
		MigrationsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_sync",
			Name:      "migrations_completed_total",
			Help:      "Staged files migrated into the canonical store, by source.",
		}, []string{"source"}),
		MigrationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_sync",
			Name:      "migration_errors_total",
			Help:      "Migrations that retained the staged file after a write failure.",
		}),
		UndersizedDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_sync",
			Name:      "undersized_deleted_total",
			Help:      "Downloads deleted for failing the minimum-size check.",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forecast_sync",
			Name:      "sync_duration_seconds",
			Help:      "Duration of a complete per-source sync pass.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		GenerationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_sync",
			Name:      "generation_runs_total",
			Help:      "Model inference subprocess runs by model and outcome.",
		}, []string{"model", "outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forecast_sync",
			Name:      "generation_duration_seconds",
			Help:      "Duration of one model inference subprocess run.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_sync",
			Name:      "events_published_total",
			Help:      "Migration events published to Kafka.",
		}),
	}

	prometheus.MustRegister(
		m.FilesFetched,
		m.FetchErrors,
		m.SyncRunning,
		m.MigrationsCompleted,
		m.MigrationErrors,
		m.UndersizedDeleted,
		m.SyncDuration,
		m.GenerationRuns,
		m.GenerationDuration,
		m.EventsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FilesFetched:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_sync", Name: "files_fetched_total"}),
		FetchErrors:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_sync", Name: "fetch_errors_total"}, []string{"transport"}),
		SyncRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "forecast_sync", Name: "sync_running"}),
		MigrationsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_sync", Name: "migrations_completed_total"}, []string{"source"}),
		MigrationErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_sync", Name: "migration_errors_total"}),
		UndersizedDeleted:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_sync", Name: "undersized_deleted_total"}),
		SyncDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "forecast_sync", Name: "sync_duration_seconds"}),
		GenerationRuns:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_sync", Name: "generation_runs_total"}, []string{"model", "outcome"}),
		GenerationDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "forecast_sync", Name: "generation_duration_seconds"}),
		EventsPublished:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_sync", Name: "events_published_total"}),
	}
}
