package engine

import (
	"math/rand"
	"time"
)

// Default retry policy for failed sync deliveries.
const (
	DefaultBackoffInitial  = 30 * time.Second
	DefaultBackoffMax      = 30 * time.Minute
	DefaultMaxSyncAttempts = 10
)

// retryPolicy computes per-event retry delays: exponential growth from
// initial to max with ±20% jitter. Unlike a sleeping backoff, it only
// answers "when may attempt N+1 run"; the queue stores the answer on the
// event so the schedule survives restarts.
type retryPolicy struct {
	initial time.Duration
	max     time.Duration
}

func newRetryPolicy(initial, max time.Duration) retryPolicy {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if max < initial {
		max = DefaultBackoffMax
	}
	return retryPolicy{initial: initial, max: max}
}

// delayFor returns the wait before the next attempt, given how many
// attempts have already failed (>= 1).
func (p retryPolicy) delayFor(attempts int) time.Duration {
	d := p.initial
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.max {
			d = p.max
			break
		}
	}
	jitter := float64(d) * 0.2 * (rand.Float64()*2 - 1)
	return time.Duration(float64(d) + jitter)
}
