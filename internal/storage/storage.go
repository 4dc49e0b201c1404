package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// Options configures the Pebble store.
type Options struct {
	CacheSize    int64         // block cache size in bytes
	MemTableSize uint64        // memtable size in bytes
	SyncInterval time.Duration // interval between background WAL syncs
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CacheSize:    32 << 20,
		MemTableSize: 16 << 20,
		SyncInterval: 100 * time.Millisecond,
	}
}

// KeyValue is one write of a batch.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Storage is a key-value store backed by Pebble.
// Writes do not wait for the WAL; a background goroutine syncs it periodically
// and Close performs a final sync.
type Storage struct {
	db       *pebble.DB
	stopSync chan struct{}
	wg       sync.WaitGroup
}

// Open opens or creates the store at path.
func Open(path string, opts Options) (*Storage, error) {
	if opts.SyncInterval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", opts.SyncInterval)
	}

	cache := pebble.NewCache(opts.CacheSize)
	defer cache.Unref()

	db, err := pebble.Open(path, &pebble.Options{
		Cache:                       cache,
		MemTableSize:                opts.MemTableSize,
		MemTableStopWritesThreshold: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	s := &Storage{
		db:       db,
		stopSync: make(chan struct{}),
	}

	s.startSyncLoop(opts.SyncInterval)

	return s, nil
}

// Get returns a copy of the value at key, or nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// the value is only valid until closer.Close()
	return append([]byte(nil), value...), nil
}

// Has reports whether key exists.
func (s *Storage) Has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, closer.Close()
}

// Set stores value at key.
func (s *Storage) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.NoSync)
}

// Delete removes key.
func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key, pebble.NoSync)
}

// SetBatch writes all pairs atomically.
func (s *Storage) SetBatch(pairs []KeyValue) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, kv := range pairs {
		if err := batch.Set(kv.Key, kv.Value, nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.NoSync)
}

// IteratePrefix calls fn for every pair whose key starts with prefix, in key order.
// Iteration stops at the first error returned by fn.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixUpperBound returns the exclusive upper bound of a prefix scan,
// or nil when the prefix is all 0xFF.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}

// Close stops the sync loop, syncs the WAL and closes the database.
func (s *Storage) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}

	return s.db.Close()
}

func (s *Storage) startSyncLoop(interval time.Duration) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
