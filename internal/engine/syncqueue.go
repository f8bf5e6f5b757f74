package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// queuePrefix scopes all queued events in the backing store.
const queuePrefix = "queue/"

// SyncQueue is a durable, append-only queue of undelivered domain events.
// Events are written to the persistent store at enqueue time and removed
// only after acknowledged delivery or retry-budget exhaustion. Keys encode
// a monotonic sequence so prefix iteration yields enqueue order per tag.
type SyncQueue struct {
	kv     ports.KeyValueStore
	sender ports.EventSender
	logger ports.Logger

	maxAttempts int
	retry       retryPolicy
	now         func() time.Time

	// mu guards the sequence counter and its store write; they must move
	// together, and must never wait behind an in-flight delivery.
	mu  sync.Mutex
	seq uint64

	// flushMu serializes flushes so two triggers cannot interleave
	// deliveries of the same tag. A flush snapshots its items up front,
	// so enqueues landing mid-flush wait for the next one.
	flushMu sync.Mutex
}

// NewSyncQueue opens the queue over the given store, recovering the
// sequence counter from any events that survived a restart. Zero backoff
// values fall back to the package defaults.
func NewSyncQueue(kv ports.KeyValueStore, sender ports.EventSender, maxAttempts int, backoffInitial, backoffMax time.Duration, logger ports.Logger) (*SyncQueue, error) {
	q := &SyncQueue{
		kv:          kv,
		sender:      sender,
		logger:      logger,
		maxAttempts: maxAttempts,
		retry:       newRetryPolicy(backoffInitial, backoffMax),
		now:         time.Now,
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = DefaultMaxSyncAttempts
	}

	// Highest surviving sequence wins; new events append after it.
	err := kv.ForEachPrefix(queuePrefix, func(key string, _ []byte) bool {
		if s, ok := seqFromKey(key); ok && s > q.seq {
			q.seq = s
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("recover queue sequence: %w", err)
	}
	return q, nil
}

func eventKey(tag string, seq uint64) string {
	return fmt.Sprintf("%s%s/%016x", queuePrefix, tag, seq)
}

func seqFromKey(key string) (uint64, bool) {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return 0, false
	}
	var s uint64
	if _, err := fmt.Sscanf(key[i+1:], "%x", &s); err != nil {
		return 0, false
	}
	return s, true
}

// Enqueue durably appends an event. A missing id is filled with a fresh
// unique one; the enqueue timestamp is always set here. The event is safe
// against process termination as soon as Enqueue returns.
func (q *SyncQueue) Enqueue(event domain.QueuedEvent) (domain.QueuedEvent, error) {
	if event.Tag == "" {
		return event, fmt.Errorf("enqueue: event tag is required")
	}
	if event.ID == "" {
		event.ID = newEventID()
	}
	event.EnqueuedAt = q.now().UTC()

	b, err := json.Marshal(event)
	if err != nil {
		return event, fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	if err := q.kv.Put(eventKey(event.Tag, q.seq), b); err != nil {
		q.seq--
		return event, err
	}

	q.logger.Debug("event queued",
		ports.String("id", event.ID),
		ports.String("tag", event.Tag))
	return event, nil
}

// Pending returns the queued events for a tag in enqueue order.
func (q *SyncQueue) Pending(tag string) ([]domain.QueuedEvent, error) {
	var out []domain.QueuedEvent
	err := q.kv.ForEachPrefix(queuePrefix+tag+"/", func(_ string, value []byte) bool {
		var ev domain.QueuedEvent
		if err := json.Unmarshal(value, &ev); err == nil {
			out = append(out, ev)
		}
		return true
	})
	return out, err
}

// Flush attempts delivery of every due event for the given tag,
// sequentially and in enqueue order. Delivered events are removed
// immediately on acknowledgment; failed events stay for a later flush with
// an increased attempt count and a backoff window; events past the retry
// budget are dropped. Flush never fails as a whole: it always returns a
// report, partial or not.
func (q *SyncQueue) Flush(ctx context.Context, tag string) domain.FlushReport {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	report := domain.FlushReport{Tag: tag}
	now := q.now()

	type item struct {
		key   string
		event domain.QueuedEvent
	}
	var items []item
	err := q.kv.ForEachPrefix(queuePrefix+tag+"/", func(key string, value []byte) bool {
		var ev domain.QueuedEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			// Unreadable events can never be delivered; drop them.
			q.logger.Warn("dropping corrupt queued event", ports.String("key", key), ports.Err(err))
			_ = q.kv.Delete(key)
			return true
		}
		items = append(items, item{key: key, event: ev})
		return true
	})
	if err != nil {
		q.logger.Error("queue scan failed", ports.String("tag", tag), ports.Err(err))
		return report
	}

	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		ev := it.event

		if !ev.Due(now) {
			continue
		}

		if err := q.sender.Deliver(ctx, ev); err != nil {
			ev.Attempts++
			if ev.Attempts >= q.maxAttempts {
				q.logger.Warn("event dropped after retry budget",
					ports.String("id", ev.ID),
					ports.Int("attempts", ev.Attempts),
					ports.Err(err))
				_ = q.kv.Delete(it.key)
				report.Dropped = append(report.Dropped, ev.ID)
				continue
			}

			ev.NextAttempt = now.Add(q.retry.delayFor(ev.Attempts))
			if b, merr := json.Marshal(ev); merr == nil {
				if perr := q.kv.Put(it.key, b); perr != nil {
					q.logger.Error("failed to persist retry state", ports.String("id", ev.ID), ports.Err(perr))
				}
			}
			report.Failed = append(report.Failed, ev.ID)

			if errors.Is(err, domain.ErrNetworkUnavailable) {
				q.logger.Debug("delivery failed, origin unreachable", ports.String("id", ev.ID))
			} else {
				q.logger.Warn("delivery rejected", ports.String("id", ev.ID), ports.Err(err))
			}
			continue
		}

		if err := q.kv.Delete(it.key); err != nil {
			// Delivered but not removed: the next flush will redeliver.
			// Consumers own idempotent merge semantics, so favor
			// at-least-once over losing the event.
			q.logger.Error("failed to remove delivered event", ports.String("id", ev.ID), ports.Err(err))
		}
		report.Delivered = append(report.Delivered, ev.ID)
	}

	if len(report.Delivered) > 0 || len(report.Failed) > 0 || len(report.Dropped) > 0 {
		q.logger.Info("flush complete",
			ports.String("tag", tag),
			ports.Int("delivered", len(report.Delivered)),
			ports.Int("failed", len(report.Failed)),
			ports.Int("dropped", len(report.Dropped)))
	}
	return report
}

// newEventID returns a random 128-bit hex identifier.
func newEventID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fall back to a time-derived id; uniqueness is still near-certain
		// within one queue.
		return fmt.Sprintf("t-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
