// Package ports defines the interfaces (ports) that connect the engine core
// to infrastructure adapters.
//
// Ports are the boundaries between the engine and the outside world: they
// state what the engine needs from external systems without fixing how those
// needs are fulfilled.
//
// # Port Interfaces
//
//   - [KeyValueStore]: Persistent store behind the cache and the sync queue
//   - [OriginFetcher]: Replays intercepted requests against the origin API
//   - [EventSender]: Delivers queued sync events to the origin
//   - [Probe]: Detects origin reachability for the reconnect trigger
//   - [NotificationSink]: Presents rendered notifications to the user
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The engine (internal/engine) depends only on these interfaces; concrete
// implementations live in internal/adapters (leveldb, HTTP). This keeps the
// engine testable with mocks and the infrastructure swappable.
package ports
