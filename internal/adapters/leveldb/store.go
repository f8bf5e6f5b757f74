// Package leveldb implements ports.KeyValueStore on top of goleveldb.
//
// A single database file backs both the cache generations and the sync
// queue; the two never share a key prefix. LevelDB batch writes give the
// atomic-or-absent guarantee the store contract requires.
package leveldb

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/skillforge/edgecache/internal/domain"
)

// Store implements ports.KeyValueStore using a leveldb database.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) the database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStoreFailure, path, err)
	}
	return &Store{db: db}, nil
}

// Put stores value under key, overwriting any existing value.
func (s *Store) Put(key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("%w: put %s: %v", domain.ErrStoreFailure, key, err)
	}
	return nil
}

// Get retrieves the value for key. A missing key is not an error.
func (s *Store) Get(key string) ([]byte, bool, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", domain.ErrStoreFailure, key, err)
	}
	return v, true, nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrStoreFailure, key, err)
	}
	return nil
}

// DeleteByPrefix removes every key with the given prefix in one batch write.
func (s *Store) DeleteByPrefix(prefix string) error {
	batch := new(leveldb.Batch)
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	for it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		batch.Delete(k)
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("%w: scan %s: %v", domain.ErrStoreFailure, prefix, err)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("%w: delete prefix %s: %v", domain.ErrStoreFailure, prefix, err)
	}
	return nil
}

// ForEachPrefix iterates keys with the given prefix in lexicographic order.
func (s *Store) ForEachPrefix(prefix string, fn func(key string, value []byte) bool) error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()
	for it.Next() {
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		if !fn(string(it.Key()), v) {
			break
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("%w: iterate %s: %v", domain.ErrStoreFailure, prefix, err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
