package metrics

import "github.com/prometheus/client_golang/prometheus"

// breakerStateValues maps gobreaker state names onto a gauge.
var breakerStateValues = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

type resilienceCollectors struct {
	attempts     *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func newResilienceCollectors() resilienceCollectors {
	return resilienceCollectors{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "attempts_total",
				Help:      "Outbound call attempts (completions, broker publishes) by operation and result.",
			},
			[]string{"operation", "result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "breaker_state",
				Help:      "Circuit breaker state by operation: 0 closed, 1 half-open, 2 open.",
			},
			[]string{"operation"},
		),
	}
}

func (c resilienceCollectors) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.attempts, c.breakerState}
}

func (c resilienceCollectors) observeAttempt(operation, result string) {
	c.attempts.WithLabelValues(operation, result).Inc()
}

func (c resilienceCollectors) observeBreakerState(operation, state string) {
	value, ok := breakerStateValues[state]
	if !ok {
		return
	}
	c.breakerState.WithLabelValues(operation).Set(value)
}
