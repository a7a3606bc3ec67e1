package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond
)

// Mutation is one write of an atomic batch.
// A mutation with Delete set removes Key and ignores Value.
type Mutation struct {
	Key    []byte // Key is the record key
	Value  []byte // Value is the new value (nil when deleting)
	Delete bool   // Delete removes the key instead of setting it
}

// Options tunes the Pebble instance.
type Options struct {
	// SyncWrites makes every committed batch durable before Apply returns.
	// When false, a background goroutine syncs the WAL periodically.
	SyncWrites bool

	// CacheSize is the block cache size in bytes.
	CacheSize int64
}

// Storage is a key-value store backed by Pebble.
type Storage struct {
	db       *pebble.DB           // db is the underlying Pebble database
	writeOpt *pebble.WriteOptions // writeOpt is Sync or NoSync depending on Options
	stopSync chan struct{}        // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup
}

// New opens a Storage at path with default options.
func New(path string) (*Storage, error) {
	return Open(path, Options{})
}

// Open opens a Storage at path.
func Open(path string, o Options) (*Storage, error) {
	if o.CacheSize <= 0 {
		o.CacheSize = 32 << 20
	}

	cache := pebble.NewCache(o.CacheSize)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	s := &Storage{
		db:       db,
		writeOpt: pebble.NoSync,
		stopSync: make(chan struct{}),
	}

	if o.SyncWrites {
		s.writeOpt = pebble.Sync
	} else {
		s.startSyncLoop()
	}

	return s, nil
}

// Get retrieves the value for the given key.
// Returns nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// The value is invalid after closer.Close()
	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Has reports whether the key exists.
func (s *Storage) Has(key []byte) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Set stores a single key-value pair.
func (s *Storage) Set(key, value []byte) error {
	return s.db.Set(key, value, s.writeOpt)
}

// Delete removes a single key.
func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key, s.writeOpt)
}

// Apply commits all mutations as one Pebble batch.
// Either every mutation is written or none is.
func (s *Storage) Apply(muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, m := range muts {
		var err error
		if m.Delete {
			err = batch.Delete(m.Key, nil)
		} else {
			err = batch.Set(m.Key, m.Value, nil)
		}
		if err != nil {
			return fmt.Errorf("stage mutation:\n%w", err)
		}
	}

	return batch.Commit(s.writeOpt)
}

// IteratePrefix calls fn for each key-value pair with the given prefix,
// in lexicographic key order. An empty prefix visits the whole database.
// If fn returns an error, iteration stops and the error is returned.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	opts := &pebble.IterOptions{}
	if len(prefix) > 0 {
		opts.LowerBound = prefix
		opts.UpperBound = prefixUpperBound(prefix)
	}

	iter, err := s.db.NewIter(opts)
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

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}

// Close stops the sync goroutine and closes the database.
func (s *Storage) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}

	return s.db.Close()
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Storage) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(defaultSyncInterval)
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

// sync forces a WAL sync to disk.
func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
