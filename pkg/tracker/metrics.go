package tracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the tracker's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	evaluations   *prometheus.CounterVec
	published     prometheus.Counter
	failures      prometheus.Counter
	sweepRuns     *prometheus.CounterVec
	sweepDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spendwatch",
			Name:      "threshold_evaluations_total",
			Help:      "Daily threshold evaluations by trigger path.",
		}, []string{"path"}),
		published: f.NewCounter(prometheus.CounterOpts{
			Namespace: "spendwatch",
			Name:      "alerts_published_total",
			Help:      "Alerts accepted by the notifier.",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "spendwatch",
			Name:      "alert_failures_total",
			Help:      "Alerts the notifier failed to publish.",
		}),
		sweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spendwatch",
			Name:      "sweep_runs_total",
			Help:      "Periodic sweeps by result.",
		}, []string{"result"}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spendwatch",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of periodic sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) evaluated(path string) {
	if m != nil {
		m.evaluations.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) alertPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *Metrics) alertFailed() {
	if m != nil {
		m.failures.Inc()
	}
}

func (m *Metrics) sweepFinished(result string, started time.Time) {
	if m != nil {
		m.sweepRuns.WithLabelValues(result).Inc()
		m.sweepDuration.Observe(time.Since(started).Seconds())
	}
}
