package ports

// KeyValueStore is the persistence boundary behind the cache store and the
// sync queue. Implementations must make Put/Delete atomic-or-absent: a write
// interrupted by process termination leaves either the previous value or the
// new one, never a partial entry.
type KeyValueStore interface {
	// Put stores value under key, overwriting any existing value.
	Put(key string, value []byte) error

	// Get retrieves the value for key.
	// Returns ok=false (and no error) when the key does not exist.
	Get(key string) (value []byte, ok bool, err error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// DeleteByPrefix removes every key with the given prefix in one batch.
	DeleteByPrefix(prefix string) error

	// ForEachPrefix calls fn for each key with the given prefix, in
	// lexicographic key order. Iteration stops when fn returns false.
	ForEachPrefix(prefix string, fn func(key string, value []byte) bool) error

	// Close releases the backing store.
	Close() error
}
