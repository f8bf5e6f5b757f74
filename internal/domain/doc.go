// Package domain contains the core entities and value objects of the edge
// cache engine.
//
// This package is the innermost layer. It has no dependencies on
// infrastructure concerns (HTTP, leveldb, logging) and contains only the
// data types and invariants the rest of the engine is built around.
//
// # Entities
//
//   - [Entry]: A captured origin response scoped to a cache generation
//   - [QueuedEvent]: A pending outbound domain event awaiting replay
//   - [PushMessage]: A parsed push payload (lesson, link, or unknown)
//   - [FlushReport]: The per-tag outcome of one sync replay pass
//
// # Invariants
//
// An Entry is only ever written for successful (2xx) responses. A QueuedEvent
// leaves the queue if and only if its delivery was acknowledged, or its retry
// budget is exhausted. Exactly one cache generation is current at a time; all
// others become eligible for deletion once activation completes.
package domain
