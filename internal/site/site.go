// Package site holds the static, immutable-after-load tenant catalogue.
package site

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Site is the static configuration for one tenant's proof-of-work parameters.
type Site struct {
	ID              uuid.UUID
	APIKey          string
	APIKeyHash      [sha256.Size]byte
	PrefixCount     int
	PrefixLength    int
	PrefixesToSolve int
	Difficulty      int
	SolutionLength  int
	Lifetime        time.Duration
}

// validate checks the invariants spec'd for a Site: 1 <= prefixesToSolve <=
// prefixCount, prefixLength >= 1, and difficulty within the hash output's bit
// width.
func (s Site) validate() error {
	if s.PrefixesToSolve < 1 || s.PrefixesToSolve > s.PrefixCount {
		return fmt.Errorf("site %s: prefixesToSolve (%d) must be between 1 and prefixCount (%d)", s.ID, s.PrefixesToSolve, s.PrefixCount)
	}
	if s.PrefixLength < 1 {
		return fmt.Errorf("site %s: prefixLength must be at least 1, got %d", s.ID, s.PrefixLength)
	}
	if s.Difficulty < 0 || s.Difficulty > 8*sha256.Size {
		return fmt.Errorf("site %s: difficulty must be between 0 and %d, got %d", s.ID, 8*sha256.Size, s.Difficulty)
	}
	if s.Lifetime <= 0 {
		return fmt.Errorf("site %s: lifetime must be positive", s.ID)
	}
	return nil
}

// Catalogue is a read-only, process-lifetime mapping from site id to Site.
// It is built once at startup and never mutated, so lookups require no
// synchronization.
type Catalogue struct {
	sites map[uuid.UUID]Site
}

// NewCatalogue builds a Catalogue from the configured sites, precomputing
// each site's APIKeyHash and validating its invariants. The hot auth path
// (internal/httpapi) never has to hash a key itself.
func NewCatalogue(sites []Site) (*Catalogue, error) {
	c := &Catalogue{sites: make(map[uuid.UUID]Site, len(sites))}
	for _, s := range sites {
		if err := s.validate(); err != nil {
			return nil, err
		}
		s.APIKeyHash = sha256.Sum256([]byte(s.APIKey))
		c.sites[s.ID] = s
	}
	return c, nil
}

// Get looks up a site by id. The boolean result reports whether it exists.
func (c *Catalogue) Get(id uuid.UUID) (Site, bool) {
	s, ok := c.sites[id]
	return s, ok
}
