package screen

import (
	"context"
	"sync"
)

// Sample is one observation of the foreground window.
type Sample struct {
	App   string
	Title string
	URL   string // set for browsers when the shell can read the address bar
}

// Identity derives the cache key for the sample.
func (s Sample) Identity() Identity {
	return DeriveIdentity(s.App, s.Title, s.URL)
}

// ForegroundProvider reports what the user is currently looking at. The
// lookup must be fast and synchronous; it is called from both the actor's
// poll loop and the query path.
type ForegroundProvider interface {
	Current(ctx context.Context) (Sample, error)
}

// StaticProvider is a ForegroundProvider whose sample is set explicitly.
// The desktop shell pushes focus updates into it; tests drive it directly.
type StaticProvider struct {
	mu     sync.RWMutex
	sample Sample
}

// NewStaticProvider creates a provider with an initial sample.
func NewStaticProvider(sample Sample) *StaticProvider {
	return &StaticProvider{sample: sample}
}

// Set replaces the current sample.
func (p *StaticProvider) Set(sample Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sample = sample
}

// Current returns the most recently set sample.
func (p *StaticProvider) Current(ctx context.Context) (Sample, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sample, nil
}
