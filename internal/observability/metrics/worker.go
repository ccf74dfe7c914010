package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsInFlight  prometheus.Gauge
	queueLag      *prometheus.HistogramVec
	completions   *prometheus.CounterVec
	completionDur *prometheus.HistogramVec
	resilience    resilienceCollectors
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "reanalysis_jobs_total",
			Help:      "Total reanalysis jobs by outcome status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "reanalysis_duration_seconds",
			Help:      "Reanalysis job duration in seconds by outcome status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "reanalysis_in_flight",
			Help:      "Number of in-flight reanalysis jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between a reanalysis request and the start of its job.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	completions, completionDur := newCompletionCollectors()

	resilience := newResilienceCollectors()

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag, completions, completionDur)
	registry.MustRegister(resilience.collectors()...)

	return &WorkerMetrics{
		registry:      registry,
		jobsTotal:     jobsTotal,
		jobDuration:   jobDuration,
		jobsInFlight:  jobsInFlight,
		queueLag:      queueLag,
		completions:   completions,
		completionDur: completionDur,
		resilience:    resilience,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

// FinishJob records the outcome status of a finished reanalysis job.
func (m *WorkerMetrics) FinishJob(service, status string, duration time.Duration) {
	m.jobsInFlight.Dec()
	if status == "" {
		status = "unknown"
	}
	m.jobsTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveCompletion(provider string, duration time.Duration, err error) {
	observeCompletion(m.completions, m.completionDur, provider, duration, err)
}

func (m *WorkerMetrics) ObserveAttempt(operation, result string) {
	m.resilience.observeAttempt(operation, result)
}

func (m *WorkerMetrics) ObserveBreakerState(operation, state string) {
	m.resilience.observeBreakerState(operation, state)
}
