package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	recomputes        *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	solverFailures    *prometheus.CounterVec
	contracts         prometheus.Gauge
	spot              *prometheus.GaugeVec
	alerts            *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		recomputes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexflow_recomputes_total",
				Help: "Total recompute runs by outcome",
			},
			[]string{"outcome"},
		),
		recomputeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gexflow_recompute_duration_seconds",
				Help:    "Duration of one solve+aggregate pass",
				Buckets: prometheus.DefBuckets,
			},
		),
		solverFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexflow_solver_failures_total",
				Help: "Contracts excluded from a snapshot by failure reason",
			},
			[]string{"reason"},
		),
		contracts: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gexflow_snapshot_contracts",
				Help: "Contracts contributing to the latest snapshot",
			},
		),
		spot: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gexflow_spot_price",
				Help: "Last spot price used in a recompute",
			},
			[]string{"underlying"},
		),
		alerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexflow_critical_alerts_total",
				Help: "Critical gamma level alerts emitted",
			},
			[]string{"underlying"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordRecompute(outcome string) {
	r.recomputes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordRecomputeDuration(seconds float64) {
	r.recomputeDuration.Observe(seconds)
}

func (r *Recorder) RecordSolverFailure(reason string) {
	r.solverFailures.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordContracts(n int) {
	r.contracts.Set(float64(n))
}

func (r *Recorder) RecordSpot(underlying string, price float64) {
	r.spot.WithLabelValues(underlying).Set(price)
}

func (r *Recorder) RecordAlert(underlying string) {
	r.alerts.WithLabelValues(underlying).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
