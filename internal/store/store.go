// Package store implements the concurrent in-memory challenge store and its
// background expiry housekeeper.
package store

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"powchallenge/internal/challenge"
	"powchallenge/internal/site"
)

// ErrSiteNotFound is returned by StoreChallenge when the site id isn't in
// the catalogue.
var ErrSiteNotFound = errors.New("store: site not found")

// ErrChallengeNotFound is returned by DeleteChallenge when the (site,
// challenge) pair is absent.
var ErrChallengeNotFound = errors.New("store: challenge not found")

type entryKey struct {
	siteID      uuid.UUID
	challengeID uuid.UUID
}

// HousekeeperConfig configures the background expiry sweeper.
type HousekeeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Store is a concurrent, insertion-ordered map from (site id, challenge id)
// to Challenge. A single mutex guards every operation; critical sections
// are O(1)/O(log n), so contention stays low even under many in-flight
// requests. The housekeeper goroutine shares the same lock, so its
// removals linearize with client operations.
type Store struct {
	catalogue *site.Catalogue
	logger    *slog.Logger

	mu      sync.Mutex
	keys    []entryKey
	index   map[entryKey]int
	entries map[entryKey]challenge.Challenge

	cfg    HousekeeperConfig
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewStore constructs a Store bound to the given catalogue and starts its
// housekeeper goroutine at construction when cfg.Interval is positive; with
// a zero or negative interval no housekeeper runs and nothing is swept.
func NewStore(catalogue *site.Catalogue, cfg HousekeeperConfig, logger *slog.Logger) *Store {
	s := &Store{
		catalogue: catalogue,
		logger:    logger,
		index:     make(map[entryKey]int),
		entries:   make(map[entryKey]challenge.Challenge),
		cfg:       cfg,
		closed:    make(chan struct{}),
	}

	if cfg.Interval > 0 {
		s.wg.Add(1)
		go s.houseKeep()
	}

	return s
}

// GetSite delegates to the static catalogue.
func (s *Store) GetSite(id uuid.UUID) (site.Site, bool) {
	return s.catalogue.Get(id)
}

// GetChallenge looks up a challenge by its (site, challenge) key. It does
// not itself check expiry — expiry is enforced by the verification path and
// the housekeeper.
func (s *Store) GetChallenge(siteID, challengeID uuid.UUID) (challenge.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.entries[entryKey{siteID: siteID, challengeID: challengeID}]
	return c, ok
}

// StoreChallenge inserts c under (site.ID, c.ID), rejecting sites that
// aren't in the catalogue.
func (s *Store) StoreChallenge(siteVal site.Site, c challenge.Challenge) error {
	if _, ok := s.catalogue.Get(siteVal.ID); !ok {
		return ErrSiteNotFound
	}

	key := entryKey{siteID: siteVal.ID, challengeID: c.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[key]; !exists {
		s.index[key] = len(s.keys)
		s.keys = append(s.keys, key)
	}
	s.entries[key] = c

	return nil
}

// DeleteChallenge removes the (site, challenge) entry, the linearization
// point of at-most-once consumption. It is the caller's responsibility to
// invoke this after (or regardless of) validating solutions.
func (s *Store) DeleteChallenge(siteVal site.Site, c challenge.Challenge) error {
	key := entryKey{siteID: siteVal.ID, challengeID: c.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(key)
}

// removeLocked removes key using a swap-with-last strategy that keeps
// s.keys/s.index consistent. Must be called with s.mu held.
func (s *Store) removeLocked(key entryKey) error {
	idx, ok := s.index[key]
	if !ok {
		return ErrChallengeNotFound
	}

	last := len(s.keys) - 1
	lastKey := s.keys[last]

	s.keys[idx] = lastKey
	s.index[lastKey] = idx
	s.keys = s.keys[:last]

	delete(s.index, key)
	delete(s.entries, key)

	return nil
}

// Healthy reports whether the store is able to serve requests. The
// in-memory implementation is always healthy; the hook exists for future
// back-ends per SPEC_FULL.md §C4.
func (s *Store) Healthy() bool {
	return true
}

// Close stops the housekeeper goroutine and waits for it to exit.
func (s *Store) Close() {
	s.once.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}

// houseKeep runs the background expiry sweep. Each tick samples
// cfg.BatchSize random positional indices and evicts any that have expired,
// without ever scanning the whole map — spreading eviction work across
// ticks instead of stalling any single one.
func (s *Store) houseKeep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Store) sweepOnce() {
	start := time.Now()
	now := time.Now()

	s.mu.Lock()
	n := len(s.keys)
	if n == 0 {
		s.mu.Unlock()
		return
	}

	indices := make([]int, s.cfg.BatchSize)
	for i := range indices {
		indices[i] = rand.IntN(n)
	}
	// Process in descending order so a swap-to-end removal never
	// invalidates a not-yet-processed sampled index from this batch.
	sortDescending(indices)

	removed := 0
	for _, idx := range indices {
		if idx >= len(s.keys) {
			// Already removed as part of this batch (duplicate sample).
			continue
		}
		key := s.keys[idx]
		c, ok := s.entries[key]
		if !ok {
			continue
		}
		if c.IsExpired(now) {
			_ = s.removeLocked(key)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("housekeeper sweep removed expired challenges",
			"removed", removed,
			"elapsed_us", time.Since(start).Microseconds())
	}
}

// sortDescending sorts a small slice of indices in descending order using a
// simple insertion sort; batch sizes are small enough that this beats the
// overhead of sort.Slice's closures.
func sortDescending(xs []int) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] < v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}
