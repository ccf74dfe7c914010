package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long a key may stay unused before its bucket is dropped.
// A bucket idle for a full minute has refilled to burst, so dropping it does
// not change any later decision.
const idleTTL = time.Minute

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps a token bucket per key in process memory. It is used
// when no Redis address is configured. Idle buckets are swept lazily from
// Allow, at most once per idleTTL.
type LocalLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	every     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewLocalLimiter(perMinute int) *LocalLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &LocalLimiter{
		buckets: make(map[string]*localBucket),
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) bool {
	key = normalizeKey(key)

	l.mu.Lock()
	now := l.now()
	l.sweep(now)
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &localBucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	l.mu.Unlock()

	return bucket.limiter.AllowN(now, 1)
}

// Close drops every bucket.
func (l *LocalLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.buckets)
}

func (l *LocalLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep must be called with mu held.
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleTTL {
		return
	}
	l.lastSweep = now
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) >= idleTTL {
			delete(l.buckets, key)
		}
	}
}
