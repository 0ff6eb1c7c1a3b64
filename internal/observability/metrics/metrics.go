package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcilerMetrics tracks reconciliation batch outcomes for /metrics.
type ReconcilerMetrics struct {
	runs     prometheus.Counter
	updated  prometheus.Counter
	errored  prometheus.Counter
	duration prometheus.Histogram
}

var (
	reconcilerOnce sync.Once
	reconciler     *ReconcilerMetrics
)

// Reconciler returns the process-wide reconciler metrics, registering them on
// first use.
func Reconciler() *ReconcilerMetrics {
	reconcilerOnce.Do(func() {
		reconciler = &ReconcilerMetrics{
			runs: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "casaflow_reconciler_runs_total",
				Help: "Number of reconciliation runs executed.",
			}),
			updated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "casaflow_reconciler_obligations_updated_total",
				Help: "Obligations whose status or late fee changed during reconciliation.",
			}),
			errored: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "casaflow_reconciler_obligations_errored_total",
				Help: "Obligations that failed to update during reconciliation.",
			}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "casaflow_reconciler_run_duration_seconds",
				Help:    "Wall time of reconciliation runs.",
				Buckets: prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			reconciler.runs,
			reconciler.updated,
			reconciler.errored,
			reconciler.duration,
		)
	})
	return reconciler
}

func (m *ReconcilerMetrics) IncRun() { m.runs.Inc() }

func (m *ReconcilerMetrics) AddUpdated(n int) { m.updated.Add(float64(n)) }

func (m *ReconcilerMetrics) AddErrored(n int) { m.errored.Add(float64(n)) }

func (m *ReconcilerMetrics) ObserveDuration(d time.Duration) {
	m.duration.Observe(d.Seconds())
}
