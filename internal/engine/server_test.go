package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/skillforge/edgecache/internal/domain"
)

type serverFixture struct {
	server    *Server
	store     *CacheStore
	queue     *SyncQueue
	lifecycle *Lifecycle
	fetcher   *mockFetcher
	sink      *mockSink
}

func newServerFixture(t *testing.T, fetcher *mockFetcher) *serverFixture {
	t.Helper()

	cfg := validConfig()
	store := NewCacheStore(newMemKV(), mockLogger{})
	queue := testQueue(t, newMemKV(), &mockSender{})
	hub := NewHub(nil, mockLogger{})
	lifecycle := NewLifecycle(store, fetcher, nil, hub.AnnounceTakeover, mockLogger{})
	resolver := NewResolver(store, fetcher, lifecycle, cfg.OfflinePath, 4, mockLogger{})
	router := NewRouter(cfg.APIPrefixes, cfg.AssetPrefixes, cfg.MediaExtensions, cfg.AssetExtensions)
	trigger := NewTrigger(queue, &mockProbe{online: true}, time.Minute, nil, mockLogger{})
	sink := &mockSink{}
	dispatcher := NewDispatcher(sink, &mockOpener{}, mockLogger{})

	server := NewServer(cfg, router, resolver, store, queue, trigger, lifecycle, dispatcher, hub, fetcher, mockLogger{})
	hub.SetHandler(server)

	return &serverFixture{
		server:    server,
		store:     store,
		queue:     queue,
		lifecycle: lifecycle,
		fetcher:   fetcher,
		sink:      sink,
	}
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) activate(t *testing.T, version string, routes ...string) {
	t.Helper()
	if err := f.lifecycle.Install(context.Background(), Manifest{Version: version, Routes: routes}); err != nil {
		t.Fatal(err)
	}
	if err := f.lifecycle.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestServer_Intercept_NetworkFirst(t *testing.T) {
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/api/courses": okEntry(`[{"id":"aws-101"}]`),
	}}
	f := newServerFixture(t, fetcher)
	f.activate(t, "v1")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(outcomeHeader); got != "network" {
		t.Errorf("outcome header = %q, want network", got)
	}
	if !strings.Contains(rec.Body.String(), "aws-101") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServer_Intercept_ServesCacheWhenOffline(t *testing.T) {
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/api/courses": {
			Status: 200,
			Header: http.Header{"Content-Type": {"application/json"}},
			Body:   []byte("cached payload"),
		},
	}}
	f := newServerFixture(t, fetcher)
	f.activate(t, "v1")

	// Warm the cache, then cut the network.
	f.do(httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	fetcher.mu.Lock()
	fetcher.err = domain.ErrNetworkUnavailable
	fetcher.mu.Unlock()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(outcomeHeader); got != "cache" {
		t.Errorf("outcome header = %q, want cache", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("captured header lost: Content-Type = %q", got)
	}
}

func TestServer_Intercept_OfflineNavigationFallsBack(t *testing.T) {
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/offline": okEntry("<html>you are offline</html>"),
	}}
	f := newServerFixture(t, fetcher)
	f.activate(t, "v1", "/offline")

	fetcher.mu.Lock()
	fetcher.err = domain.ErrNetworkUnavailable
	fetcher.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/courses/aws-101", nil)
	req.Header.Set("Accept", "text/html")
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(outcomeHeader); got != "fallback" {
		t.Errorf("outcome header = %q, want fallback", got)
	}
	if !strings.Contains(rec.Body.String(), "offline") {
		t.Errorf("body = %q", rec.Body.String())
	}
	f.server.resolver.Wait()
}

func TestServer_Intercept_OfflineNoFallbackIs502(t *testing.T) {
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	f := newServerFixture(t, fetcher)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

// A POST to a sync endpoint that fails for network reasons is queued and
// acknowledged with 202, not lost.
func TestServer_Bypass_OfflinePostQueued(t *testing.T) {
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	f := newServerFixture(t, fetcher)

	body := `{"lessonId":"l1","completed":true}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	var ack map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatal(err)
	}
	if ack["queued"] == "" || ack["tag"] != domain.TagProgress {
		t.Errorf("ack = %v", ack)
	}

	pending, err := f.queue.Pending(domain.TagProgress)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || string(pending[0].Payload) != body {
		t.Errorf("pending = %+v", pending)
	}
}

func TestServer_Bypass_OfflinePostNonSyncPathIs502(t *testing.T) {
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	f := newServerFixture(t, fetcher)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if pending, _ := f.queue.Pending(domain.TagProgress); len(pending) != 0 {
		t.Error("non-sync path was queued")
	}
}

func TestServer_Bypass_OfflinePostRejectsNonJSON(t *testing.T) {
	fetcher := &mockFetcher{err: domain.ErrNetworkUnavailable}
	f := newServerFixture(t, fetcher)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader("not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_Bypass_OnlinePassesThrough(t *testing.T) {
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/api/progress": {Status: 201, Body: []byte(`{"ok":true}`)},
	}}
	f := newServerFixture(t, fetcher)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader(`{}`)))
	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if pending, _ := f.queue.Pending(domain.TagProgress); len(pending) != 0 {
		t.Error("successful post was queued anyway")
	}
}

func TestServer_Push(t *testing.T) {
	f := newServerFixture(t, &mockFetcher{})

	raw := `{"title":"New lesson","data":{"courseId":"aws-101"}}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/_edge/push", strings.NewReader(raw)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(f.sink.shown) != 1 || f.sink.shown[0].TargetURL != "/courses/aws-101" {
		t.Errorf("shown = %+v", f.sink.shown)
	}

	// Malformed push is acknowledged and dropped.
	rec = f.do(httptest.NewRequest(http.MethodPost, "/_edge/push", strings.NewReader("garbage")))
	if rec.Code != http.StatusAccepted {
		t.Errorf("malformed push status = %d, want 202", rec.Code)
	}
	if len(f.sink.shown) != 1 {
		t.Error("malformed push produced a notification")
	}
}

func TestServer_Health(t *testing.T) {
	fetcher := &mockFetcher{entries: map[string]domain.Entry{"/": okEntry("shell")}}
	f := newServerFixture(t, fetcher)
	f.activate(t, "v7", "/")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/_edge/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status["generation"] != "v7" || status["phase"] != "Active" {
		t.Errorf("health = %v", status)
	}
	if status["entries"] != float64(1) {
		t.Errorf("entries = %v, want 1", status["entries"])
	}
}

func TestServer_CacheURLs(t *testing.T) {
	fetcher := &mockFetcher{entries: map[string]domain.Entry{
		"/":                okEntry("shell"),
		"/media/intro.mp4": okEntry("video"),
		"/assets/app.js":   okEntry("bundle"),
	}}
	f := newServerFixture(t, fetcher)
	f.activate(t, "v1", "/")

	err := f.server.CacheURLs(context.Background(), []string{"/media/intro.mp4", "/assets/app.js", "/missing"})
	if err != nil {
		t.Fatalf("CacheURLs() error = %v", err)
	}

	n, _ := f.store.Count("v1")
	if n != 3 { // shell + two eager entries; /missing skipped
		t.Errorf("entries = %d, want 3", n)
	}
}
