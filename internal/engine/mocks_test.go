package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// memKV is an in-memory ports.KeyValueStore with sorted-key iteration,
// matching the ordering contract of the leveldb adapter.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte

	failPut    bool
	failDelete bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return domain.ErrStoreFailure
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return domain.ErrStoreFailure
	}
	delete(m.data, key)
	return nil
}

func (m *memKV) DeleteByPrefix(prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *memKV) ForEachPrefix(prefix string, fn func(key string, value []byte) bool) error {
	m.mu.Lock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = append([]byte(nil), m.data[k]...)
	}
	m.mu.Unlock()

	for _, k := range keys {
		if !fn(k, snapshot[k]) {
			break
		}
	}
	return nil
}

func (m *memKV) Close() error { return nil }

func (m *memKV) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// mockFetcher implements ports.OriginFetcher with canned responses per URL.
type mockFetcher struct {
	mu      sync.Mutex
	entries map[string]domain.Entry
	err     error
	calls   []string
}

func (f *mockFetcher) Fetch(_ context.Context, req ports.FetchRequest) (domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL)
	if f.err != nil {
		return domain.Entry{}, f.err
	}
	if e, ok := f.entries[req.URL]; ok {
		return e, nil
	}
	return domain.Entry{Status: 404, Body: []byte("not found")}, nil
}

func (f *mockFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// mockSender implements ports.EventSender, failing for ids listed in fail.
type mockSender struct {
	mu        sync.Mutex
	fail      map[string]error
	delivered []domain.QueuedEvent
}

func (s *mockSender) Deliver(_ context.Context, event domain.QueuedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[event.ID]; ok {
		return err
	}
	s.delivered = append(s.delivered, event)
	return nil
}

func (s *mockSender) deliveredIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	for i, ev := range s.delivered {
		out[i] = ev.ID
	}
	return out
}

// mockProbe implements ports.Probe with a settable answer.
type mockProbe struct {
	mu     sync.Mutex
	online bool
}

func (p *mockProbe) Online(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *mockProbe) set(online bool) {
	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
}

// mockSink records shown notifications.
type mockSink struct {
	mu    sync.Mutex
	shown []domain.Notification
}

func (s *mockSink) Show(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, n)
	return nil
}

// mockOpener records opened URLs.
type mockOpener struct {
	mu     sync.Mutex
	opened []string
}

func (o *mockOpener) OpenOrFocus(_ context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, url)
	return nil
}

// fixedGen is a GenerationSource pinned to one generation.
type fixedGen string

func (g fixedGen) CurrentGeneration() string { return string(g) }

func okEntry(body string) domain.Entry {
	return domain.Entry{Status: 200, Body: []byte(body)}
}
