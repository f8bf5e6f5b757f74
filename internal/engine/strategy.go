package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// GenerationSource supplies the currently active cache generation.
// The lifecycle manager implements it.
type GenerationSource interface {
	CurrentGeneration() string
}

// Resolver executes the three caching disciplines against the cache store
// and the origin.
type Resolver struct {
	store   *CacheStore
	fetcher ports.OriginFetcher
	gens    GenerationSource
	logger  ports.Logger

	// offlinePath is the pre-cached fallback document returned when a
	// navigation fails with no cached alternative.
	offlinePath string

	// refreshSem bounds concurrent detached refreshes; a full semaphore
	// means the refresh is skipped, never queued.
	refreshSem     chan struct{}
	refreshTimeout time.Duration
	wg             sync.WaitGroup
}

// NewResolver creates a strategy resolver. refreshConcurrency bounds
// detached CacheFirst refreshes.
func NewResolver(store *CacheStore, fetcher ports.OriginFetcher, gens GenerationSource, offlinePath string, refreshConcurrency int, logger ports.Logger) *Resolver {
	if refreshConcurrency <= 0 {
		refreshConcurrency = 8
	}
	return &Resolver{
		store:          store,
		fetcher:        fetcher,
		gens:           gens,
		logger:         logger,
		offlinePath:    offlinePath,
		refreshSem:     make(chan struct{}, refreshConcurrency),
		refreshTimeout: 30 * time.Second,
	}
}

// Outcome tags how a resolved response was produced, for logging and the
// diagnostic response header.
type Outcome string

const (
	OutcomeNetwork  Outcome = "network"
	OutcomeCache    Outcome = "cache"
	OutcomeFallback Outcome = "fallback"
)

// Resolve applies the given discipline to the request. navigation marks
// requests for full HTML documents, which fall back to the offline page
// rather than surfacing a transport error.
func (r *Resolver) Resolve(ctx context.Context, disc Discipline, freq ports.FetchRequest, navigation bool) (domain.Entry, Outcome, error) {
	switch disc {
	case NetworkFirst:
		return r.networkFirst(ctx, freq, navigation)
	case CacheFirst:
		return r.cacheFirst(ctx, freq)
	case StaleWhileRevalidate:
		return r.staleWhileRevalidate(ctx, freq, navigation)
	default:
		return domain.Entry{}, "", fmt.Errorf("discipline %s is not resolvable", disc)
	}
}

// Wait blocks until all detached refreshes have finished. Used on shutdown.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

func (r *Resolver) key(freq ports.FetchRequest) string {
	return domain.EntryKey(freq.Method, freq.URL)
}

// networkFirst fetches from the network, caching successes. On network
// failure it serves the cached entry, then the offline page for
// navigations, then propagates the failure.
func (r *Resolver) networkFirst(ctx context.Context, freq ports.FetchRequest, navigation bool) (domain.Entry, Outcome, error) {
	gen := r.gens.CurrentGeneration()
	key := r.key(freq)

	entry, err := r.fetcher.Fetch(ctx, freq)
	if err == nil {
		if entry.OK() {
			if perr := r.store.Put(gen, key, entry); perr != nil {
				r.logger.Warn("cache write failed", ports.String("key", key), ports.Err(perr))
			}
		}
		return entry, OutcomeNetwork, nil
	}

	if cached, cerr := r.store.Get(gen, key); cerr == nil {
		return cached, OutcomeCache, nil
	}
	if navigation {
		if fallback, ferr := r.offlineFallback(gen); ferr == nil {
			return fallback, OutcomeFallback, nil
		}
	}
	return domain.Entry{}, "", err
}

// cacheFirst serves the cached entry immediately, refreshing it in the
// background for next time. A miss falls through to the network.
func (r *Resolver) cacheFirst(ctx context.Context, freq ports.FetchRequest) (domain.Entry, Outcome, error) {
	gen := r.gens.CurrentGeneration()
	key := r.key(freq)

	if cached, err := r.store.Get(gen, key); err == nil {
		r.refreshDetached(gen, key, freq)
		return cached, OutcomeCache, nil
	}

	entry, err := r.fetcher.Fetch(ctx, freq)
	if err != nil {
		return domain.Entry{}, "", err
	}
	if entry.OK() {
		if perr := r.store.Put(gen, key, entry); perr != nil {
			r.logger.Warn("cache write failed", ports.String("key", key), ports.Err(perr))
		}
	}
	return entry, OutcomeNetwork, nil
}

// staleWhileRevalidate starts the network fetch first, then serves the
// cached entry if present; the in-flight fetch updates the cache either
// way. A miss waits for the network.
func (r *Resolver) staleWhileRevalidate(ctx context.Context, freq ports.FetchRequest, navigation bool) (domain.Entry, Outcome, error) {
	gen := r.gens.CurrentGeneration()
	key := r.key(freq)

	type fetchResult struct {
		entry domain.Entry
		err   error
	}
	done := make(chan fetchResult, 1)

	// The revalidation must not be canceled just because the cached
	// response was already written out.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.refreshTimeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		entry, err := r.fetcher.Fetch(fctx, freq)
		if err == nil && entry.OK() {
			if perr := r.store.Put(gen, key, entry); perr != nil {
				r.logger.Warn("revalidate write failed", ports.String("key", key), ports.Err(perr))
			}
		}
		done <- fetchResult{entry, err}
	}()

	if cached, err := r.store.Get(gen, key); err == nil {
		return cached, OutcomeCache, nil
	}

	select {
	case res := <-done:
		if res.err == nil {
			return res.entry, OutcomeNetwork, nil
		}
		if navigation {
			if fallback, ferr := r.offlineFallback(gen); ferr == nil {
				return fallback, OutcomeFallback, nil
			}
		}
		return domain.Entry{}, "", res.err
	case <-ctx.Done():
		return domain.Entry{}, "", ctx.Err()
	}
}

// refreshDetached issues a fire-and-forget fetch whose only effect is a
// cache update. Errors are swallowed here so they can never reach the
// primary response path.
func (r *Resolver) refreshDetached(gen, key string, freq ports.FetchRequest) {
	select {
	case r.refreshSem <- struct{}{}:
	default:
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.refreshSem }()

		ctx, cancel := context.WithTimeout(context.Background(), r.refreshTimeout)
		defer cancel()

		entry, err := r.fetcher.Fetch(ctx, freq)
		if err != nil || !entry.OK() {
			r.logger.Debug("background refresh skipped", ports.String("key", key), ports.Err(err))
			return
		}
		if perr := r.store.Put(gen, key, entry); perr != nil {
			r.logger.Debug("background refresh write failed", ports.String("key", key), ports.Err(perr))
		}
	}()
}

func (r *Resolver) offlineFallback(gen string) (domain.Entry, error) {
	if r.offlinePath == "" {
		return domain.Entry{}, domain.ErrCacheMiss
	}
	return r.store.Get(gen, domain.EntryKey(http.MethodGet, r.offlinePath))
}

// IsOffline reports whether the error means the origin was unreachable, as
// opposed to the origin answering with a failure.
func IsOffline(err error) bool {
	return errors.Is(err, domain.ErrNetworkUnavailable)
}
