package domain

import (
	"time"

	json "github.com/goccy/go-json"
)

// Sync tags partition queued events for independent, selective replay.
const (
	TagProgress  = "progress-sync"
	TagAnalytics = "analytics-sync"
)

// KnownTags lists every tag a reconnect trigger replays.
var KnownTags = []string{TagProgress, TagAnalytics}

// QueuedEvent is one pending outbound domain event: a progress update or an
// analytics event that could not be delivered while offline. Events are
// durably written at enqueue time and removed only after the origin
// acknowledges delivery, or after the retry budget is exhausted.
type QueuedEvent struct {
	// ID is a stable unique event identifier.
	ID string `json:"id"`

	// Tag is the sync tag the event belongs to (progress-sync, analytics-sync).
	Tag string `json:"tag"`

	// Payload is the opaque JSON body replayed to the origin.
	Payload json.RawMessage `json:"payload"`

	// EnqueuedAt is when the event entered the queue.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Attempts counts failed delivery attempts so far.
	Attempts int `json:"attempts"`

	// NextAttempt is the earliest time the event may be retried.
	// Zero means the event is immediately deliverable.
	NextAttempt time.Time `json:"next_attempt,omitempty"`
}

// Due reports whether the event is deliverable at the given time.
func (e QueuedEvent) Due(now time.Time) bool {
	return e.NextAttempt.IsZero() || !now.Before(e.NextAttempt)
}

// FlushReport is the outcome of one replay pass for a single tag.
// A flush never fails as a whole; partial results are always reported.
type FlushReport struct {
	// Tag is the sync tag this report covers.
	Tag string `json:"tag"`

	// Delivered lists ids of events acknowledged and removed from the queue.
	Delivered []string `json:"delivered"`

	// Failed lists ids of events whose delivery failed; they stay queued.
	Failed []string `json:"failed"`

	// Dropped lists ids of events evicted after exhausting their retry budget.
	Dropped []string `json:"dropped,omitempty"`
}

// Clean reports whether every attempted delivery succeeded.
func (r FlushReport) Clean() bool {
	return len(r.Failed) == 0 && len(r.Dropped) == 0
}
