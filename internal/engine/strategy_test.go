package engine

import (
	"context"
	"testing"
	"time"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

func testResolver(store *CacheStore, fetcher ports.OriginFetcher) *Resolver {
	return NewResolver(store, fetcher, fixedGen("v1"), "/offline", 4, mockLogger{})
}

func getReq(url string) ports.FetchRequest {
	return ports.FetchRequest{Method: "GET", URL: url}
}

// While the origin answers, the cached copy is never consulted.
func TestResolver_NetworkFirst_OnlineCachesAndServes(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	key := domain.EntryKey("GET", "/api/courses")
	if err := store.Put("v1", key, okEntry("stale")); err != nil {
		t.Fatal(err)
	}
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/api/courses": okEntry("fresh"),
	}}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), NetworkFirst, getReq("/api/courses"), false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeNetwork || string(entry.Body) != "fresh" {
		t.Errorf("outcome = %s, body = %q, want network/fresh", outcome, entry.Body)
	}

	cached, err := store.Get("v1", key)
	if err != nil {
		t.Fatalf("response was not cached: %v", err)
	}
	if string(cached.Body) != "fresh" {
		t.Errorf("cached body = %q, want fresh", cached.Body)
	}
}

// A reachable origin answering with a failure status is returned as-is and
// never cached.
func TestResolver_NetworkFirst_FailureStatusNotCached(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/api/broken": {Status: 500, Body: []byte("oops")},
	}}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), NetworkFirst, getReq("/api/broken"), false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeNetwork || entry.Status != 500 {
		t.Errorf("outcome = %s, status = %d, want network/500", outcome, entry.Status)
	}
	if _, err := store.Get("v1", domain.EntryKey("GET", "/api/broken")); err == nil {
		t.Error("failure response was cached")
	}
}

func TestResolver_NetworkFirst_OfflineServesCache(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	key := domain.EntryKey("GET", "/api/courses")
	if err := store.Put("v1", key, okEntry("stale")); err != nil {
		t.Fatal(err)
	}
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), NetworkFirst, getReq("/api/courses"), false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeCache || string(entry.Body) != "stale" {
		t.Errorf("outcome = %s, body = %q, want cache/stale", outcome, entry.Body)
	}
}

func TestResolver_NetworkFirst_OfflineNavigationFallsBack(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	if err := store.Put("v1", domain.EntryKey("GET", "/offline"), okEntry("offline page")); err != nil {
		t.Fatal(err)
	}
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), NetworkFirst, getReq("/courses/aws-101"), true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeFallback || string(entry.Body) != "offline page" {
		t.Errorf("outcome = %s, body = %q, want fallback/offline page", outcome, entry.Body)
	}
}

func TestResolver_NetworkFirst_OfflineNoFallbackPropagates(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	r := testResolver(store, fetcher)

	_, _, err := r.Resolve(context.Background(), NetworkFirst, getReq("/api/courses"), false)
	if !IsOffline(err) {
		t.Errorf("Resolve() error = %v, want network-unavailable", err)
	}
}

func TestResolver_CacheFirst_HitRefreshesInBackground(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	key := domain.EntryKey("GET", "/assets/app.js")
	if err := store.Put("v1", key, okEntry("old bundle")); err != nil {
		t.Fatal(err)
	}
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/assets/app.js": okEntry("new bundle"),
	}}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), CacheFirst, getReq("/assets/app.js"), false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeCache || string(entry.Body) != "old bundle" {
		t.Errorf("outcome = %s, body = %q, want cached old bundle", outcome, entry.Body)
	}

	r.Wait()
	cached, err := store.Get("v1", key)
	if err != nil {
		t.Fatal(err)
	}
	if string(cached.Body) != "new bundle" {
		t.Errorf("background refresh did not update cache, body = %q", cached.Body)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.callCount())
	}
}

func TestResolver_CacheFirst_MissGoesToNetwork(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/media/intro.mp4": okEntry("video"),
	}}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), CacheFirst, getReq("/media/intro.mp4"), false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeNetwork || string(entry.Body) != "video" {
		t.Errorf("outcome = %s, body = %q, want network/video", outcome, entry.Body)
	}
	if _, err := store.Get("v1", domain.EntryKey("GET", "/media/intro.mp4")); err != nil {
		t.Errorf("network result was not cached: %v", err)
	}
}

func TestResolver_CacheFirst_MissOfflinePropagates(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	r := testResolver(store, fetcher)

	_, _, err := r.Resolve(context.Background(), CacheFirst, getReq("/media/intro.mp4"), false)
	if !IsOffline(err) {
		t.Errorf("Resolve() error = %v, want network-unavailable", err)
	}
}

func TestResolver_StaleWhileRevalidate_HitServesCachedAndRevalidates(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	key := domain.EntryKey("GET", "/courses/aws-101")
	if err := store.Put("v1", key, okEntry("stale page")); err != nil {
		t.Fatal(err)
	}
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/courses/aws-101": okEntry("fresh page"),
	}}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), StaleWhileRevalidate, getReq("/courses/aws-101"), true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeCache || string(entry.Body) != "stale page" {
		t.Errorf("outcome = %s, body = %q, want cached stale page", outcome, entry.Body)
	}

	r.Wait()
	cached, err := store.Get("v1", key)
	if err != nil {
		t.Fatal(err)
	}
	if string(cached.Body) != "fresh page" {
		t.Errorf("revalidation did not update cache, body = %q", cached.Body)
	}
}

func TestResolver_StaleWhileRevalidate_MissWaitsForNetwork(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/courses/new": okEntry("first visit"),
	}}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), StaleWhileRevalidate, getReq("/courses/new"), true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeNetwork || string(entry.Body) != "first visit" {
		t.Errorf("outcome = %s, body = %q, want network/first visit", outcome, entry.Body)
	}
}

func TestResolver_StaleWhileRevalidate_MissOfflineNavigationFallsBack(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	if err := store.Put("v1", domain.EntryKey("GET", "/offline"), okEntry("offline page")); err != nil {
		t.Fatal(err)
	}
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	r := testResolver(store, fetcher)

	entry, outcome, err := r.Resolve(context.Background(), StaleWhileRevalidate, getReq("/courses/new"), true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome != OutcomeFallback || string(entry.Body) != "offline page" {
		t.Errorf("outcome = %s, body = %q, want fallback/offline page", outcome, entry.Body)
	}
	r.Wait()
}

func TestResolver_StaleWhileRevalidate_ContextCancel(t *testing.T) {
	store := NewCacheStore(newMemKV(), mockLogger{})
	blocked := make(chan struct{})
	fetcher := blockingFetcher{release: blocked}
	r := testResolver(store, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := r.Resolve(ctx, StaleWhileRevalidate, getReq("/courses/slow"), false)
	if err != context.Canceled {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
	close(blocked)
	r.Wait()
}

// blockingFetcher blocks until release is closed.
type blockingFetcher struct {
	release chan struct{}
}

func (f blockingFetcher) Fetch(ctx context.Context, _ ports.FetchRequest) (domain.Entry, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
	}
	return domain.Entry{}, domain.ErrNetworkUnavailable
}
