package worker

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the dispatcher.
type Metrics struct {
	// Outcome counters by invocation kind.
	outcomes *prometheus.CounterVec // outcome: completed, retried, exhausted, permanent, malformed

	// Task execution latency by invocation kind.
	duration *prometheus.HistogramVec

	// Deliveries currently executing.
	inFlight prometheus.Gauge
}

// NewMetrics creates dispatcher metrics and registers them with the
// provided registry. A nil registry disables metrics.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronolens",
			Subsystem: "worker",
			Name:      "task_outcomes_total",
			Help:      "Total task executions by kind and outcome",
		}, []string{"kind", "outcome"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chronolens",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"kind"}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chronolens",
			Subsystem: "worker",
			Name:      "tasks_in_flight",
			Help:      "Number of tasks currently executing",
		}),
	}

	for _, collector := range []prometheus.Collector{m.outcomes, m.duration, m.inFlight} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeOutcome(kind, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) observeDuration(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) taskStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) taskFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
