package screen

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/glance/internal/analyzer"
	"github.com/normanking/glance/internal/bus"
	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/pkg/types"
)

// ActorConfig configures the cache actor.
type ActorConfig struct {
	PollInterval   time.Duration // foreground sampling interval
	SweepInterval  time.Duration // cache sweep interval
	RequestTimeout time.Duration // per background analysis request
	MaxFailures    int           // consecutive analysis failures before degraded mode
}

// DefaultActorConfig returns the default actor configuration.
func DefaultActorConfig() ActorConfig {
	return ActorConfig{
		PollInterval:   500 * time.Millisecond,
		SweepInterval:  30 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxFailures:    5,
	}
}

// SnapshotIndexer receives every fresh analysis snapshot so ranked element
// search stays in step with the cache.
type SnapshotIndexer interface {
	IndexSnapshot(ctx context.Context, identity, app string, capturedAt time.Time, elements []types.Element) error
}

// Actor owns the screen cache. It polls the foreground window, requests
// fresh analysis on cache misses, and publishes updates on the bus. It never
// performs analysis itself; the expensive extraction work happens in the
// analyzer collaborator and reports back asynchronously. Coordination with
// the query side is entirely through the cache's read API and bus events;
// there is no other shared state.
type Actor struct {
	cache      *Cache
	foreground ForegroundProvider
	analyzer   analyzer.Analyzer
	indexer    SnapshotIndexer // optional
	events     *bus.Bus
	log        *logging.Logger
	config     ActorConfig

	// State owned by the poll loop
	lastIdentity Identity

	// In-flight analysis tracking, so one identity is never analyzed twice
	// concurrently.
	inflightMu sync.Mutex
	inflight   map[string]bool

	// Analyzer health
	failMu   sync.Mutex
	failures int
	degraded bool

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewActor creates a cache actor. The cache may be shared with the query
// path for reads and forced-fresh writes.
func NewActor(cache *Cache, fg ForegroundProvider, az analyzer.Analyzer, events *bus.Bus, cfg ActorConfig) *Actor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultActorConfig().PollInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultActorConfig().SweepInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultActorConfig().RequestTimeout
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultActorConfig().MaxFailures
	}

	return &Actor{
		cache:      cache,
		foreground: fg,
		analyzer:   az,
		events:     events,
		log:        logging.Global().WithComponent("ScreenActor"),
		config:     cfg,
		inflight:   make(map[string]bool),
		stopCh:     make(chan struct{}),
	}
}

// SetIndexer attaches a snapshot indexer. Must be called before Start.
func (a *Actor) SetIndexer(ix SnapshotIndexer) {
	a.indexer = ix
}

// Start launches the poll and sweep loops. It returns immediately.
func (a *Actor) Start(ctx context.Context) {
	a.wg.Add(2)
	go a.pollLoop(ctx)
	go a.sweepLoop(ctx)

	a.log.Info("started (poll=%v, sweep=%v)", a.config.PollInterval, a.config.SweepInterval)
}

// Stop shuts down the loops and waits for them to exit. In-flight analysis
// goroutines finish on their own timeouts.
func (a *Actor) Stop() {
	a.stopped.Do(func() {
		close(a.stopCh)
	})
	a.wg.Wait()
	a.log.Info("stopped")
}

// Cache returns the actor-owned cache for query-path reads.
func (a *Actor) Cache() *Cache {
	return a.cache
}

// Degraded reports whether the analyzer is currently considered unhealthy.
func (a *Actor) Degraded() bool {
	a.failMu.Lock()
	defer a.failMu.Unlock()
	return a.degraded
}

// pollLoop samples the foreground window at a fixed interval and reacts to
// identity transitions.
func (a *Actor) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.pollOnce(ctx)
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollOnce performs a single poll cycle.
func (a *Actor) pollOnce(ctx context.Context) {
	sample, err := a.foreground.Current(ctx)
	if err != nil {
		a.log.Debug("foreground lookup failed: %v", err)
		return
	}

	identity := sample.Identity()
	if identity.IsZero() || identity == a.lastIdentity {
		return
	}
	a.lastIdentity = identity

	a.log.Debug("window changed: %s", identity.String())
	event := bus.NewEvent(bus.EventWindowChanged)
	event.Identity = identity.String()
	event.Message = sample.App
	a.events.Publish(event)

	// Cache hit for the new identity: nothing to do.
	if _, ok := a.cache.Get(identity, true); ok {
		return
	}

	a.requestAnalysis(sample, identity)
}

// requestAnalysis dispatches an asynchronous analysis request unless one is
// already in flight for the identity. A failed request simply leaves the
// entry absent; the next transition (or the query path's forced-fresh
// bypass) retries. Polling already throttles retries, so no backoff.
func (a *Actor) requestAnalysis(sample Sample, identity Identity) {
	key := identity.String()

	a.inflightMu.Lock()
	if a.inflight[key] {
		a.inflightMu.Unlock()
		return
	}
	a.inflight[key] = true
	a.inflightMu.Unlock()

	req := analyzer.Request{
		ID:       uuid.NewString(),
		Identity: key,
		App:      sample.App,
		Title:    sample.Title,
		URL:      sample.URL,
	}

	event := bus.NewEvent(bus.EventAnalysisRequested)
	event.Identity = key
	a.events.Publish(event)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			a.inflightMu.Lock()
			delete(a.inflight, key)
			a.inflightMu.Unlock()
		}()

		reqCtx, cancel := context.WithTimeout(context.Background(), a.config.RequestTimeout)
		defer cancel()

		result, err := a.analyzer.Analyze(reqCtx, req)
		if err != nil {
			a.log.Warn("analysis failed for %s: %v", key, err)
			failed := bus.NewEvent(bus.EventAnalysisFailed)
			failed.Identity = key
			failed.Error = err.Error()
			a.events.Publish(failed)
			a.recordFailure()
			return
		}

		entry := a.cache.Put(identity, result)
		a.recordSuccess()

		if a.indexer != nil {
			if err := a.indexer.IndexSnapshot(reqCtx, key, sample.App, entry.CapturedAt, entry.Elements); err != nil {
				a.log.Warn("element indexing failed for %s: %v", key, err)
			}
		}

		a.log.Debug("cache updated: %s (%d elements)", key, entry.ElementCount())
		updated := bus.NewEvent(bus.EventCacheUpdated)
		updated.Identity = key
		a.events.Publish(updated)
	}()
}

// recordFailure counts consecutive analysis failures and flips to degraded
// mode when the threshold is crossed.
func (a *Actor) recordFailure() {
	a.failMu.Lock()
	defer a.failMu.Unlock()

	a.failures++
	if a.failures >= a.config.MaxFailures && !a.degraded {
		a.degraded = true
		a.log.Warn("analyzer degraded after %d consecutive failures", a.failures)
		a.events.Publish(bus.NewEvent(bus.EventAnalyzerDegraded))
	}
}

// recordSuccess resets the failure counter and clears degraded mode.
func (a *Actor) recordSuccess() {
	a.failMu.Lock()
	defer a.failMu.Unlock()

	a.failures = 0
	if a.degraded {
		a.degraded = false
		a.log.Info("analyzer recovered")
		a.events.Publish(bus.NewEvent(bus.EventAnalyzerRecovered))
	}
}

// sweepLoop runs cache sweeps on a slower fixed interval, independent of the
// poll loop.
func (a *Actor) sweepLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := a.cache.Sweep(); removed > 0 {
				a.log.Debug("sweep removed %d entries", removed)
			}
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
