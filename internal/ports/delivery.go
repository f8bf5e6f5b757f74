package ports

import (
	"context"

	"github.com/skillforge/edgecache/internal/domain"
)

// EventSender replays one previously-queued event to its origin endpoint.
// Implementations route by the event's tag (progress-sync, analytics-sync)
// and handle serialization and authentication.
type EventSender interface {
	// Deliver sends the event's JSON payload to the origin.
	// Returns nil when the origin acknowledged the event (2xx), an error
	// wrapping domain.ErrDeliveryRejected for a non-success status, and an
	// error wrapping domain.ErrNetworkUnavailable when the origin could not
	// be reached.
	Deliver(ctx context.Context, event domain.QueuedEvent) error
}

// Probe checks whether the origin is reachable. The sync trigger uses it to
// detect the offline to online transition that starts a replay.
type Probe interface {
	// Online reports whether the origin currently answers.
	Online(ctx context.Context) bool
}
