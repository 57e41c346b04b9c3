package screen

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/normanking/glance/pkg/types"
)

// FreshnessPolicy controls how long cache entries are served.
type FreshnessPolicy struct {
	ActiveTTL     time.Duration // focused window
	BackgroundTTL time.Duration // windows no longer focused
	StaleCeiling  time.Duration // absolute age beyond which an entry is never served
	MaxWindows    int           // resident entry cap
}

// DefaultFreshnessPolicy matches the shipped config defaults.
func DefaultFreshnessPolicy() FreshnessPolicy {
	return FreshnessPolicy{
		ActiveTTL:     30 * time.Second,
		BackgroundTTL: 2 * time.Minute,
		StaleCeiling:  5 * time.Minute,
		MaxWindows:    10,
	}
}

// Validate rejects policies whose TTLs exceed the staleness ceiling.
func (p FreshnessPolicy) Validate() error {
	if p.ActiveTTL <= 0 || p.BackgroundTTL <= 0 || p.StaleCeiling <= 0 {
		return fmt.Errorf("freshness policy durations must be positive")
	}
	if p.ActiveTTL >= p.StaleCeiling {
		return fmt.Errorf("active TTL %v must be below stale ceiling %v", p.ActiveTTL, p.StaleCeiling)
	}
	if p.BackgroundTTL >= p.StaleCeiling {
		return fmt.Errorf("background TTL %v must be below stale ceiling %v", p.BackgroundTTL, p.StaleCeiling)
	}
	if p.MaxWindows <= 0 {
		return fmt.Errorf("max windows must be positive")
	}
	return nil
}

// Entry is one cached analysis snapshot. Entries are immutable after
// creation: re-analysis replaces the whole entry, so concurrent readers see
// either the full old snapshot or the full new one.
type Entry struct {
	Identity    Identity
	CapturedAt  time.Time
	Elements    []types.Element
	FullText    string
	Summary     string
	Viewport    types.Viewport
	RegionIndex map[Region][]types.Element
}

// ElementCount returns the number of extracted elements.
func (e *Entry) ElementCount() int {
	return len(e.Elements)
}

// Cache stores one snapshot per tracked window identity. It is written by
// the background actor (and the forced-fresh query path) and read by
// arbitrarily many concurrent query-path callers.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	policy  FreshnessPolicy
	now     func() time.Time // injectable for tests
}

// NewCache creates a cache with the given freshness policy.
func NewCache(policy FreshnessPolicy) (*Cache, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid freshness policy: %w", err)
	}
	return &Cache{
		entries: make(map[string]*Entry),
		policy:  policy,
		now:     time.Now,
	}, nil
}

// Get returns the entry for an identity if it is still fresh. The active
// flag selects the TTL class: the focused window's entry goes stale sooner
// than a background window's. Stale entries are reported as misses but not
// deleted; deletion is the sweeper's job.
func (c *Cache) Get(id Identity, active bool) (*Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id.String()]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	age := c.now().Sub(entry.CapturedAt)
	if age >= c.policy.StaleCeiling {
		return nil, false
	}

	ttl := c.policy.BackgroundTTL
	if active {
		ttl = c.policy.ActiveTTL
	}
	if age >= ttl {
		return nil, false
	}

	return entry, true
}

// Put replaces any existing entry for the identity wholesale, recomputing
// the region index and stamping the capture time.
func (c *Cache) Put(id Identity, result *types.AnalysisResult) *Entry {
	vp := result.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = types.DefaultViewport
	}

	entry := &Entry{
		Identity:    id,
		CapturedAt:  c.now(),
		Elements:    result.Elements,
		FullText:    result.FullText,
		Summary:     result.Summary,
		Viewport:    vp,
		RegionIndex: BuildIndex(result.Elements, vp),
	}

	c.mu.Lock()
	c.entries[id.String()] = entry
	c.mu.Unlock()

	return entry
}

// Sweep removes entries older than the stale ceiling, then enforces the
// resident cap by evicting oldest-by-capture first. Returns the number of
// entries removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	for key, entry := range c.entries {
		if now.Sub(entry.CapturedAt) >= c.policy.StaleCeiling {
			delete(c.entries, key)
			removed++
		}
	}

	if len(c.entries) > c.policy.MaxWindows {
		keys := make([]string, 0, len(c.entries))
		for key := range c.entries {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			return c.entries[keys[i]].CapturedAt.Before(c.entries[keys[j]].CapturedAt)
		})
		excess := len(c.entries) - c.policy.MaxWindows
		for _, key := range keys[:excess] {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of resident entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Policy returns the cache's freshness policy.
func (c *Cache) Policy() FreshnessPolicy {
	return c.policy
}
