package engine

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// genPrefix scopes all cache entries in the backing store. Queue keys live
// under a different prefix and are never touched by generation eviction.
const genPrefix = "gen/"

// CacheStore is a versioned, named key-to-response store. Entries belong to
// a generation; evicting a generation removes all of its entries at once.
type CacheStore struct {
	kv     ports.KeyValueStore
	logger ports.Logger
}

// NewCacheStore creates a cache store over the given key-value backend.
func NewCacheStore(kv ports.KeyValueStore, logger ports.Logger) *CacheStore {
	return &CacheStore{kv: kv, logger: logger}
}

func entryStoreKey(generation, key string) string {
	return genPrefix + generation + "/" + key
}

// Put stores a captured response under (generation, key), overwriting any
// existing entry for the same key within the generation. Only successful
// responses may be stored; a non-2xx entry is refused so a failure can
// never clobber a good entry.
func (s *CacheStore) Put(generation, key string, entry domain.Entry) error {
	if !entry.OK() {
		return fmt.Errorf("refusing to cache status %d for %s", entry.Status, key)
	}
	entry.Generation = generation
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", key, err)
	}
	return s.kv.Put(entryStoreKey(generation, key), b)
}

// Get retrieves the entry for (generation, key).
// Returns domain.ErrCacheMiss when no entry exists.
func (s *CacheStore) Get(generation, key string) (domain.Entry, error) {
	b, ok, err := s.kv.Get(entryStoreKey(generation, key))
	if err != nil {
		return domain.Entry{}, err
	}
	if !ok {
		return domain.Entry{}, domain.ErrCacheMiss
	}
	var entry domain.Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		// A corrupt entry is unreadable; treat as a miss so the caller
		// refetches and overwrites it.
		s.logger.Warn("corrupt cache entry", ports.String("key", key), ports.Err(err))
		return domain.Entry{}, domain.ErrCacheMiss
	}
	return entry, nil
}

// Generations lists every generation currently present in the store.
func (s *CacheStore) Generations() ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	err := s.kv.ForEachPrefix(genPrefix, func(key string, _ []byte) bool {
		rest := strings.TrimPrefix(key, genPrefix)
		if i := strings.IndexByte(rest, '/'); i > 0 {
			g := rest[:i]
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				out = append(out, g)
			}
		}
		return true
	})
	return out, err
}

// Count returns the number of entries stored under a generation.
func (s *CacheStore) Count(generation string) (int, error) {
	n := 0
	err := s.kv.ForEachPrefix(genPrefix+generation+"/", func(string, []byte) bool {
		n++
		return true
	})
	return n, err
}

// DeleteGenerationsExcept removes every generation other than current.
// Called exactly once per activation cycle; irreversible.
func (s *CacheStore) DeleteGenerationsExcept(current string) error {
	gens, err := s.Generations()
	if err != nil {
		return err
	}
	for _, g := range gens {
		if g == current {
			continue
		}
		if err := s.kv.DeleteByPrefix(genPrefix + g + "/"); err != nil {
			return err
		}
		s.logger.Info("evicted cache generation", ports.String("generation", g))
	}
	return nil
}
