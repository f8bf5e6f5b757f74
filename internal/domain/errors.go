package domain

import "errors"

// Domain errors represent error conditions in the edgecache domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrNetworkUnavailable is returned when the origin could not be reached.
	// Recoverable: strategies fall back to cache, mutating calls are queued.
	ErrNetworkUnavailable = errors.New("edgecache: network unavailable")

	// ErrCacheMiss is returned when no stored entry exists for a key.
	// Not a failure in itself; strategies use it as a routing signal.
	ErrCacheMiss = errors.New("edgecache: cache miss")

	// ErrDeliveryRejected is returned when the origin answered a sync replay
	// with a non-success status. The event stays in the queue.
	ErrDeliveryRejected = errors.New("edgecache: delivery rejected")

	// ErrStoreFailure is returned when the persistent backing store failed to
	// read or write. Fatal for that single operation only.
	ErrStoreFailure = errors.New("edgecache: store failure")

	// ErrAlreadyRunning is returned when Start() is called on a running engine.
	ErrAlreadyRunning = errors.New("edgecache: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped engine.
	ErrNotRunning = errors.New("edgecache: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("edgecache: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("edgecache: invalid configuration")
)
