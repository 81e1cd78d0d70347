package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// weather pipeline.
type Metrics struct {
	RunsStarted     prometheus.Counter
	RunsFailed      prometheus.Counter
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram

	// Acquisition metrics.
	FetchRequests prometheus.Counter
	FetchErrors   prometheus.Counter
	FetchDuration *prometheus.HistogramVec // labels: source={archive,forecast}

	// Normalization and merge metrics.
	RecordsNormalized  prometheus.Counter
	IncompleteRanges   prometheus.Counter
	DuplicatesResolved prometheus.Counter

	// Artifact metrics.
	ArtifactRows   *prometheus.GaugeVec // labels: artifact={hourly,daily_summary}
	ArtifactWrites prometheus.Counter
	UploadErrors   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "runs_started_total",
			Help:      "Total pipeline runs started.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "runs_failed_total",
			Help:      "Total pipeline runs that ended in error.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-merge-write cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FetchRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "fetch_requests_total",
			Help:      "Total provider payload fetches attempted.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "fetch_errors_total",
			Help:      "Total provider payload fetches that failed.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		RecordsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "records_normalized_total",
			Help:      "Total hourly records produced by normalization.",
		}),
		IncompleteRanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "incomplete_ranges_total",
			Help:      "Payloads that covered less than the requested interval.",
		}),
		DuplicatesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "duplicates_resolved_total",
			Help:      "Overlapping (location, hour) records resolved during merge.",
		}),
		ArtifactRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "artifact_rows",
			Help:      "Rows in the most recently written artifact.",
		}, []string{"artifact"}),
		ArtifactWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "artifact_writes_total",
			Help:      "Total artifact files written.",
		}),
		UploadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "upload_errors_total",
			Help:      "Total S3 upload failures.",
		}),
	}

	prometheus.MustRegister(
		m.RunsStarted,
		m.RunsFailed,
		m.PipelineRunning,
		m.RunDuration,
		m.FetchRequests,
		m.FetchErrors,
		m.FetchDuration,
		m.RecordsNormalized,
		m.IncompleteRanges,
		m.DuplicatesResolved,
		m.ArtifactRows,
		m.ArtifactWrites,
		m.UploadErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunsStarted:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "runs_started_total"}),
		RunsFailed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "runs_failed_total"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "weather_etl", Name: "pipeline_running"}),
		RunDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "weather_etl", Name: "run_duration_seconds"}),
		FetchRequests:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "fetch_requests_total"}),
		FetchErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "fetch_errors_total"}),
		FetchDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "weather_etl", Name: "fetch_duration_seconds"}, []string{"source"}),
		RecordsNormalized:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "records_normalized_total"}),
		IncompleteRanges:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "incomplete_ranges_total"}),
		DuplicatesResolved: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "duplicates_resolved_total"}),
		ArtifactRows:       prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "weather_etl", Name: "artifact_rows"}, []string{"artifact"}),
		ArtifactWrites:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "artifact_writes_total"}),
		UploadErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "upload_errors_total"}),
	}
}
