package edgecache

import (
	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/engine"
)

// EventHandler receives notifications about engine operations. All methods
// are called synchronously from engine goroutines; implementations should
// return quickly to avoid blocking request handling.
type EventHandler interface {
	// OnPhaseChange is called when the cache lifecycle changes phase.
	OnPhaseChange(event PhaseChangeEvent)

	// OnFlush is called after every sync queue flush attempt.
	OnFlush(event FlushEvent)
}

// PhaseChangeEvent describes a lifecycle phase transition.
type PhaseChangeEvent struct {
	Previous   string
	Current    string
	Generation string
	Reason     string
}

// FlushEvent describes the outcome of one sync queue flush.
type FlushEvent struct {
	Tag       string
	Delivered []string
	Failed    []string
	Dropped   []string
}

// eventEmitterWrapper adapts EventHandler to the internal emitter
// interfaces. A nil handler turns every callback into a no-op.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnPhaseChange(previous, current engine.Phase, generation, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnPhaseChange(PhaseChangeEvent{
		Previous:   previous.String(),
		Current:    current.String(),
		Generation: generation,
		Reason:     reason,
	})
}

func (e *eventEmitterWrapper) OnFlush(report domain.FlushReport) {
	if e.handler == nil {
		return
	}
	e.handler.OnFlush(FlushEvent{
		Tag:       report.Tag,
		Delivered: report.Delivered,
		Failed:    report.Failed,
		Dropped:   report.Dropped,
	})
}
