package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for workflow execution, namespaced
// "forgeflow":
//
//   - runs_inflight (gauge): workflows currently executing
//   - steps_total (counter): step executions by step name and outcome
//   - step_latency_ms (histogram): step duration by step name
//   - retry_attempts_total (counter): re-attempts scheduled by supervisors
//
// Attach to an engine with WithMetrics and to retry supervisors through
// RetryConfig.Metrics. All collectors are safe for concurrent use.
type Metrics struct {
	runsInflight  prometheus.Gauge
	stepsTotal    *prometheus.CounterVec
	stepLatency   *prometheus.HistogramVec
	retryAttempts *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors with the given registry,
// or with prometheus.DefaultRegisterer when nil. Expose them with
// promhttp.HandlerFor on the same registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		runsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "forgeflow",
			Name:      "runs_inflight",
			Help:      "Number of workflow runs currently executing.",
		}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgeflow",
			Name:      "steps_total",
			Help:      "Step executions by step name and outcome.",
		}, []string{"step", "outcome"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forgeflow",
			Name:      "step_latency_ms",
			Help:      "Step execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"step"}),
		retryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgeflow",
			Name:      "retry_attempts_total",
			Help:      "Re-attempts scheduled by retry supervisors.",
		}, []string{"step"}),
	}
}

func (m *Metrics) runStarted() {
	m.runsInflight.Inc()
}

func (m *Metrics) runEnded() {
	m.runsInflight.Dec()
}

func (m *Metrics) observeStep(step string, d time.Duration, ok bool) {
	outcome := "completed"
	if !ok {
		outcome = "fault"
	}
	m.stepsTotal.WithLabelValues(step, outcome).Inc()
	m.stepLatency.WithLabelValues(step).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) retryScheduled(step string) {
	m.retryAttempts.WithLabelValues(step).Inc()
}
