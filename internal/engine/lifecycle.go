package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// Phase is the lifecycle phase of the engine's cache generations.
type Phase int

const (
	// PhaseIdle: no generation installed yet.
	PhaseIdle Phase = iota

	// PhaseInstalling: a new generation is being pre-populated.
	PhaseInstalling

	// PhaseInstalled: a generation is populated and waiting for activation.
	PhaseInstalled

	// PhaseActive: the current generation serves all requests.
	PhaseActive
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseInstalling:
		return "Installing"
	case PhaseInstalled:
		return "Installed"
	case PhaseActive:
		return "Active"
	default:
		return "Unknown"
	}
}

// PhaseEmitter is called on lifecycle phase changes.
type PhaseEmitter interface {
	OnPhaseChange(previous, current Phase, generation, reason string)
}

// Lifecycle governs installation of static assets into the cache store,
// activation (old-generation eviction), and takeover of connected clients.
//
// Install pre-populates a new generation from the asset manifest and leaves
// it waiting; Activate promotes the waiting generation, evicts every other
// generation, and notifies clients so they immediately route through the
// new one. A previously active generation is superseded implicitly when a
// newer one activates.
type Lifecycle struct {
	store   *CacheStore
	fetcher ports.OriginFetcher
	logger  ports.Logger
	emitter PhaseEmitter

	// onActivate, when set, is called after a generation takes over, with
	// the new generation id. The control channel uses it to broadcast the
	// takeover.
	onActivate func(generation string)

	mu      sync.RWMutex
	phase   Phase
	current string
	waiting string
}

// NewLifecycle creates a lifecycle manager in PhaseIdle.
func NewLifecycle(store *CacheStore, fetcher ports.OriginFetcher, emitter PhaseEmitter, onActivate func(string), logger ports.Logger) *Lifecycle {
	return &Lifecycle{
		store:      store,
		fetcher:    fetcher,
		logger:     logger,
		emitter:    emitter,
		onActivate: onActivate,
		phase:      PhaseIdle,
	}
}

// Phase returns the current lifecycle phase.
func (l *Lifecycle) Phase() Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase
}

// CurrentGeneration returns the active generation id, empty before the
// first activation.
func (l *Lifecycle) CurrentGeneration() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// WaitingGeneration returns the installed-but-not-active generation id, if
// any.
func (l *Lifecycle) WaitingGeneration() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.waiting
}

// transitionTo validates and applies a phase change.
func (l *Lifecycle) transitionTo(next Phase, generation, reason string) error {
	l.mu.Lock()
	prev := l.phase

	valid := false
	switch prev {
	case PhaseIdle:
		valid = next == PhaseInstalling
	case PhaseInstalling:
		valid = next == PhaseInstalled || next == PhaseIdle
	case PhaseInstalled:
		valid = next == PhaseActive || next == PhaseInstalling
	case PhaseActive:
		// A deploy while active starts a fresh install cycle.
		valid = next == PhaseInstalling
	}
	if !valid {
		l.mu.Unlock()
		return fmt.Errorf("invalid lifecycle transition %s -> %s", prev, next)
	}
	l.phase = next
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.OnPhaseChange(prev, next, generation, reason)
	}
	l.logger.Info("lifecycle transition",
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("generation", generation),
		ports.String("reason", reason))
	return nil
}

// Install pre-populates a new generation with the manifest's critical
// routes. A route that fails to fetch is skipped: partial pre-population is
// acceptable and install never aborts on a single asset. The generation is
// left waiting; call Activate to promote it.
func (l *Lifecycle) Install(ctx context.Context, manifest Manifest) error {
	if manifest.Version == "" {
		return fmt.Errorf("%w: manifest version is required", domain.ErrInvalidConfig)
	}

	l.mu.RLock()
	already := l.current == manifest.Version
	l.mu.RUnlock()
	if already {
		// Reinstalling the active generation just refreshes its assets.
		l.logger.Debug("reinstalling active generation", ports.String("generation", manifest.Version))
	}

	if err := l.transitionTo(PhaseInstalling, manifest.Version, "install requested"); err != nil {
		return err
	}

	installed := 0
	for _, route := range manifest.Routes {
		entry, err := l.fetcher.Fetch(ctx, ports.FetchRequest{
			Method: http.MethodGet,
			URL:    route,
			Header: http.Header{"Accept": []string{"text/html,*/*"}},
		})
		if err != nil || !entry.OK() {
			l.logger.Warn("manifest route skipped",
				ports.String("route", route),
				ports.Err(err))
			continue
		}
		key := domain.EntryKey(http.MethodGet, route)
		if err := l.store.Put(manifest.Version, key, entry); err != nil {
			l.logger.Warn("manifest route not cached", ports.String("route", route), ports.Err(err))
			continue
		}
		installed++
	}

	l.mu.Lock()
	l.waiting = manifest.Version
	l.mu.Unlock()

	entries, err := l.store.Count(manifest.Version)
	if err != nil {
		l.logger.Warn("generation entry count unavailable", ports.Err(err))
	}
	l.logger.Info("generation installed",
		ports.String("generation", manifest.Version),
		ports.Int("routes", installed),
		ports.Int("entries", entries),
		ports.Int("manifest", len(manifest.Routes)))
	return l.transitionTo(PhaseInstalled, manifest.Version, "manifest populated")
}

// Activate promotes the waiting generation: every other generation is
// evicted from the store, then connected clients are told to route through
// the new generation immediately. Used on startup, on SKIP_WAITING, and by
// the deploy watcher when auto-activation is on.
func (l *Lifecycle) Activate(ctx context.Context) error {
	l.mu.Lock()
	next := l.waiting
	prev := l.current
	l.mu.Unlock()

	if next == "" {
		return fmt.Errorf("no generation waiting for activation")
	}

	if err := l.store.DeleteGenerationsExcept(next); err != nil {
		// Leftover generations waste storage but never serve stale data;
		// the next activation retries the eviction.
		l.logger.Error("generation eviction incomplete", ports.Err(err))
	}

	l.mu.Lock()
	l.current = next
	l.waiting = ""
	l.mu.Unlock()

	reason := "activated"
	if prev != "" && prev != next {
		reason = "superseding " + prev
	}
	if err := l.transitionTo(PhaseActive, next, reason); err != nil {
		return err
	}

	if l.onActivate != nil {
		l.onActivate(next)
	}
	return nil
}
