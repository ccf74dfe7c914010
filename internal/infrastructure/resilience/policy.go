package resilience

import "time"

// Config tunes retries and the circuit breaker of one Executor. A
// RetryMaxAttempts of 1 disables retries.
type Config struct {
	AttemptTimeout time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// CompletionPolicy guards calls to the completion provider. Model calls are
// slow and billed, so backoff is wide and the breaker waits a full minute
// before probing the provider again.
func CompletionPolicy(maxAttempts int, breakerEnabled bool) Config {
	return Config{
		RetryMaxAttempts:        maxAttempts,
		RetryInitialBackoff:     500 * time.Millisecond,
		RetryMaxBackoff:         4 * time.Second,
		RetryMultiplier:         2,
		BreakerEnabled:          breakerEnabled,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}
}

// PublishPolicy guards broker publishes of reanalysis requests and
// finalized-analysis events. Publishing is cheap, so it retries quickly and
// each attempt is capped well below an HTTP request budget.
func PublishPolicy() Config {
	return Config{
		AttemptTimeout:          2 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialBackoff:     50 * time.Millisecond,
		RetryMaxBackoff:         400 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      15 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	out.AttemptTimeout = max(out.AttemptTimeout, 0)
	if out.RetryMaxAttempts < 1 {
		out.RetryMaxAttempts = 1
	}
	out.RetryInitialBackoff = positiveOr(out.RetryInitialBackoff, 100*time.Millisecond)
	out.RetryMaxBackoff = max(positiveOr(out.RetryMaxBackoff, 400*time.Millisecond), out.RetryInitialBackoff)
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = 2
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = 10
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = 0.5
	}
	out.BreakerOpenTimeout = positiveOr(out.BreakerOpenTimeout, 30*time.Second)
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = 2
	}
	return out
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
