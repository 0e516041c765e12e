package store

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"powchallenge/internal/challenge"
	"powchallenge/internal/site"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSite(lifetime time.Duration) site.Site {
	return site.Site{
		ID:              uuid.New(),
		APIKey:          "cool",
		PrefixCount:     2,
		PrefixLength:    4,
		PrefixesToSolve: 1,
		Difficulty:      1,
		SolutionLength:  12,
		Lifetime:        lifetime,
	}
}

func newTestStore(t *testing.T, sites []site.Site, cfg HousekeeperConfig) *Store {
	t.Helper()
	cat, err := site.NewCatalogue(sites)
	if err != nil {
		t.Fatalf("NewCatalogue failed: %v", err)
	}
	s := NewStore(cat, cfg, testLogger())
	t.Cleanup(s.Close)
	return s
}

func TestStoreChallenge_Retrievable(t *testing.T) {
	sv := testSite(time.Minute)
	s := newTestStore(t, []site.Site{sv}, HousekeeperConfig{})

	c, err := challenge.Generate(sv, time.Now())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if err := s.StoreChallenge(sv, c); err != nil {
		t.Fatalf("StoreChallenge failed: %v", err)
	}

	got, ok := s.GetChallenge(sv.ID, c.ID)
	if !ok {
		t.Fatal("expected stored challenge to be retrievable")
	}
	if got.ID != c.ID {
		t.Errorf("id mismatch: got %s want %s", got.ID, c.ID)
	}
}

func TestStoreChallenge_RejectsUnknownSite(t *testing.T) {
	s := newTestStore(t, nil, HousekeeperConfig{})

	unknown := testSite(time.Minute)
	c, err := challenge.Generate(unknown, time.Now())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if err := s.StoreChallenge(unknown, c); err != ErrSiteNotFound {
		t.Errorf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestDeleteChallenge(t *testing.T) {
	sv := testSite(time.Minute)
	s := newTestStore(t, []site.Site{sv}, HousekeeperConfig{})

	c, err := challenge.Generate(sv, time.Now())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := s.StoreChallenge(sv, c); err != nil {
		t.Fatalf("StoreChallenge failed: %v", err)
	}

	if err := s.DeleteChallenge(sv, c); err != nil {
		t.Fatalf("DeleteChallenge failed: %v", err)
	}

	if _, ok := s.GetChallenge(sv.ID, c.ID); ok {
		t.Error("expected challenge to be gone after delete")
	}

	if err := s.DeleteChallenge(sv, c); err != ErrChallengeNotFound {
		t.Errorf("expected ErrChallengeNotFound on second delete, got %v", err)
	}
}

// TestConsumeOnce exercises property 2: of many concurrent deletes for the
// same challenge, exactly one succeeds.
func TestConsumeOnce(t *testing.T) {
	sv := testSite(time.Minute)
	s := newTestStore(t, []site.Site{sv}, HousekeeperConfig{})

	c, err := challenge.Generate(sv, time.Now())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := s.StoreChallenge(sv, c); err != nil {
		t.Fatalf("StoreChallenge failed: %v", err)
	}

	const attempts = 50
	var wg sync.WaitGroup
	var successCount int32
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.DeleteChallenge(sv, c); err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successCount != 1 {
		t.Errorf("expected exactly 1 successful delete, got %d", successCount)
	}
}

// TestHousekeeperEvictsExpired exercises property 3: an expired challenge
// is eventually swept even without being explicitly deleted.
func TestHousekeeperEvictsExpired(t *testing.T) {
	sv := testSite(10 * time.Millisecond)
	s := newTestStore(t, []site.Site{sv}, HousekeeperConfig{Interval: 20 * time.Millisecond, BatchSize: 10})

	c, err := challenge.Generate(sv, time.Now())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := s.StoreChallenge(sv, c); err != nil {
		t.Fatalf("StoreChallenge failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.GetChallenge(sv.ID, c.ID); !ok {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}

	t.Fatal("expected housekeeper to evict expired challenge within deadline")
}

func TestHealthy(t *testing.T) {
	s := newTestStore(t, nil, HousekeeperConfig{})
	if !s.Healthy() {
		t.Error("expected in-memory store to always be healthy")
	}
}

func TestSweepOnce_EmptyStoreIsNoop(t *testing.T) {
	s := newTestStore(t, nil, HousekeeperConfig{})
	s.sweepOnce() // must not panic on an empty store
}

func TestSortDescending(t *testing.T) {
	xs := []int{3, 1, 4, 1, 5, 9, 2, 6}
	sortDescending(xs)
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[i-1] {
			t.Fatalf("not descending at %d: %v", i, xs)
		}
	}
}
