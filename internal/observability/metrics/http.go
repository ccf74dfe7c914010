package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docan"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysisOutcomesTotal *prometheus.CounterVec
	completionTotal       *prometheus.CounterVec
	completionDuration    *prometheus.HistogramVec
	rateLimitedTotal      *prometheus.CounterVec
	resilience            resilienceCollectors
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analysisOutcomesTotal := newAnalysisOutcomesCounter()
	completionTotal, completionDuration := newCompletionCollectors()
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the per-user rate limiter.",
		},
		[]string{"service", "path"},
	)

	resilience := newResilienceCollectors()

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analysisOutcomesTotal,
		completionTotal,
		completionDuration,
		rateLimitedTotal,
	)
	registry.MustRegister(resilience.collectors()...)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		analysisOutcomesTotal: analysisOutcomesTotal,
		completionTotal:       completionTotal,
		completionDuration:    completionDuration,
		rateLimitedTotal:      rateLimitedTotal,
		resilience:            resilience,
	}
}

func newAnalysisOutcomesCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "outcomes_total",
			Help:      "Total analysis pipeline runs by entry point and outcome status.",
		},
		[]string{"service", "entry", "status"},
	)
}

func newCompletionCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec) {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "completions_total",
			Help:      "Total completion provider calls by status.",
		},
		[]string{"provider", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "completion_duration_seconds",
			Help:      "Completion provider call duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)
	return total, duration
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds document ids out of the label set.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/documents/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/v1/documents/")
	if rest == "" {
		return path
	}
	if strings.HasSuffix(rest, "/analyses") {
		return "/v1/documents/{document_id}/analyses"
	}
	if strings.HasSuffix(rest, "/source") {
		return "/v1/documents/{document_id}/source"
	}
	return "/v1/documents/{document_id}"
}

func (m *HTTPServerMetrics) RecordOutcome(service, entry, status string) {
	if status == "" {
		status = "unknown"
	}
	m.analysisOutcomesTotal.WithLabelValues(service, entry, status).Inc()
}

// ObserveCompletion satisfies llm.CompletionObserver.
func (m *HTTPServerMetrics) ObserveCompletion(provider string, duration time.Duration, err error) {
	observeCompletion(m.completionTotal, m.completionDuration, provider, duration, err)
}

func (m *HTTPServerMetrics) ObserveAttempt(operation, result string) {
	m.resilience.observeAttempt(operation, result)
}

func (m *HTTPServerMetrics) ObserveBreakerState(operation, state string) {
	m.resilience.observeBreakerState(operation, state)
}

func (m *HTTPServerMetrics) RecordRateLimited(service, path string) {
	m.rateLimitedTotal.WithLabelValues(service, normalizePath(path)).Inc()
}

func observeCompletion(total *prometheus.CounterVec, hist *prometheus.HistogramVec, provider string, duration time.Duration, err error) {
	if provider == "" {
		provider = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	total.WithLabelValues(provider, status).Inc()
	hist.WithLabelValues(provider).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
