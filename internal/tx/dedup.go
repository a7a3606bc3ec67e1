package tx

import (
	"sync"
	"time"
)

const (
	// DefaultReplayWindow is how long a seen envelope hash is remembered.
	DefaultReplayWindow = 2 * time.Minute

	// cleanupInterval is the interval between cleanup runs.
	cleanupInterval = 10 * time.Second
)

// Dedup rejects envelopes seen within the replay window.
// Envelopes may not expire later than the window, so a remembered hash
// outlives every envelope that could repeat it.
type Dedup struct {
	seen map[[32]byte]int64 // seen maps envelope hash to first-seen time (unix nano)
	mu   sync.Mutex         // mu protects the seen map
	ttl  int64              // ttl in nanoseconds
	stop chan struct{}      // stop signals the cleanup goroutine to stop
	once sync.Once          // once guards the close of stop
	wg   sync.WaitGroup     // wg waits for the cleanup goroutine
}

// NewDedup creates a replay guard remembering hashes for window.
func NewDedup(window time.Duration) *Dedup {
	if window <= 0 {
		window = DefaultReplayWindow
	}

	d := &Dedup{
		seen: make(map[[32]byte]int64),
		ttl:  int64(window),
		stop: make(chan struct{}),
	}

	d.startCleanup()

	return d
}

// Window returns the replay window.
func (d *Dedup) Window() time.Duration {
	return time.Duration(d.ttl)
}

// Check returns true if hash is new and records it.
func (d *Dedup) Check(hash [32]byte, now time.Time) bool {
	ts := now.UnixNano()

	d.mu.Lock()
	defer d.mu.Unlock()

	if seen, exists := d.seen[hash]; exists && ts-seen < d.ttl {
		return false
	}

	d.seen[hash] = ts

	return true
}

// Forget drops hash so the same envelope can be submitted again.
// Used when an envelope was rejected before reaching the ledger.
func (d *Dedup) Forget(hash [32]byte) {
	d.mu.Lock()
	delete(d.seen, hash)
	d.mu.Unlock()
}

// Close stops the cleanup goroutine. Calling it more than once is safe.
func (d *Dedup) Close() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}

// startCleanup starts the background cleanup goroutine.
func (d *Dedup) startCleanup() {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				d.cleanup(now)
			case <-d.stop:
				return
			}
		}
	}()
}

// cleanup removes expired entries from the seen map.
func (d *Dedup) cleanup(now time.Time) {
	ts := now.UnixNano()

	d.mu.Lock()
	defer d.mu.Unlock()

	for hash, seen := range d.seen {
		if ts-seen >= d.ttl {
			delete(d.seen, hash)
		}
	}
}
