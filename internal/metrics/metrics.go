package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/scheduler"
)

const namespace = "rsscreen"

// Run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds every collector the screener exports
// ⭐ SSOT: 프로메테우스 지표 정의는 여기서만
type Metrics struct {
	registry *prometheus.Registry

	Runs          *prometheus.CounterVec
	StageOutput   *prometheus.GaugeVec
	StageDuration *prometheus.HistogramVec
	FetchFailures prometheus.Counter
	LastRun       *prometheus.GaugeVec
	Watchlist     *prometheus.GaugeVec

	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
}

// New creates collectors on a private registry (Go/process collectors included)
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Screening runs by variant and outcome",
			},
			[]string{"variant", "outcome"},
		),

		StageOutput: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_output",
				Help:      "Tickers surviving each stage in the last run",
			},
			[]string{"variant", "stage"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"variant", "stage"},
		),

		FetchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Tickers whose series could not be loaded after retries",
			},
		),

		LastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
			[]string{"variant"},
		),

		Watchlist: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "watchlist_size",
				Help:      "Entries in the last watchlist",
			},
			[]string{"variant"},
		),

		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "job_runs_total",
				Help:      "Scheduled job activations by outcome",
			},
			[]string{"job", "outcome"},
		),

		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Wall time of scheduled jobs including retries",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"job"},
		),
	}

	m.registry.MustRegister(
		m.Runs,
		m.StageOutput,
		m.StageDuration,
		m.FetchFailures,
		m.LastRun,
		m.Watchlist,
		m.JobRuns,
		m.JobDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// StageCompleted implements selection.Observer
func (m *Metrics) StageCompleted(variant string, stage contracts.Stage, passed int, elapsed time.Duration) {
	m.StageOutput.WithLabelValues(variant, stage.ShortName()).Set(float64(passed))
	m.StageDuration.WithLabelValues(variant, stage.ShortName()).Observe(elapsed.Seconds())
}

// FetchFailed implements s0_data.FailureRecorder
func (m *Metrics) FetchFailed(string) {
	m.FetchFailures.Inc()
}

// RunFinished records a run outcome
func (m *Metrics) RunFinished(variant string, watchlistSize int, err error) {
	if err != nil {
		m.Runs.WithLabelValues(variant, OutcomeFailure).Inc()
		return
	}
	m.Runs.WithLabelValues(variant, OutcomeSuccess).Inc()
	m.Watchlist.WithLabelValues(variant).Set(float64(watchlistSize))
	m.LastRun.WithLabelValues(variant).SetToCurrentTime()
}

// JobFinished implements scheduler.JobObserver
func (m *Metrics) JobFinished(job string, r scheduler.JobResult) {
	switch {
	case r.Skipped:
		m.JobRuns.WithLabelValues(job, OutcomeSkipped).Inc()
		return
	case r.Success:
		m.JobRuns.WithLabelValues(job, OutcomeSuccess).Inc()
	default:
		m.JobRuns.WithLabelValues(job, OutcomeFailure).Inc()
	}
	m.JobDuration.WithLabelValues(job).Observe(r.Duration.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
