package pipeline

import (
	"context"
	"time"

	"github.com/normanking/glance/internal/bus"
	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/internal/screen"
)

// GateConfig bounds the readiness wait.
type GateConfig struct {
	PollInterval time.Duration // cache re-check interval
	Budget       time.Duration // total wait before giving up
}

// DefaultGateConfig returns the shipped gate settings.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		PollInterval: 200 * time.Millisecond,
		Budget:       5 * time.Second,
	}
}

// GateResult reports how the readiness wait ended.
type GateResult struct {
	Entry      *screen.Entry // non-nil when Ready
	Ready      bool
	ForceFresh bool          // budget exhausted: bypass the cache, analyze synchronously
	Waited     time.Duration
}

// Gate closes the race between "query arrived" and "the background actor
// hasn't finished populating the cache for the now-active window yet". It
// polls the cache until the entry lands or the budget runs out; on timeout
// the caller must request a synchronous fresh analysis instead of silently
// answering from absent data.
type Gate struct {
	cache  *screen.Cache
	events *bus.Bus
	log    *logging.Logger
	config GateConfig
}

// NewGate creates a readiness gate over the shared cache.
func NewGate(cache *screen.Cache, events *bus.Bus, cfg GateConfig) *Gate {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultGateConfig().PollInterval
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultGateConfig().Budget
	}
	return &Gate{
		cache:  cache,
		events: events,
		log:    logging.Global().WithComponent("ReadinessGate"),
		config: cfg,
	}
}

// Wait blocks until the cache holds a fresh entry for the identity, the
// budget is exhausted, or the context is cancelled. Progress is published
// at roughly quarter-budget increments so the user sees the wait.
func (g *Gate) Wait(ctx context.Context, identity screen.Identity, queryID string) GateResult {
	if entry, ok := g.cache.Get(identity, true); ok {
		return GateResult{Entry: entry, Ready: true}
	}

	start := time.Now()
	deadline := start.Add(g.config.Budget)
	quarter := g.config.Budget / 4
	nextProgress := quarter

	ticker := time.NewTicker(g.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return GateResult{ForceFresh: true, Waited: time.Since(start)}
		case <-ticker.C:
		}

		if entry, ok := g.cache.Get(identity, true); ok {
			return GateResult{Entry: entry, Ready: true, Waited: time.Since(start)}
		}

		elapsed := time.Since(start)
		if elapsed >= nextProgress && nextProgress < g.config.Budget {
			g.publishProgress(queryID, elapsed)
			nextProgress += quarter
		}

		if time.Now().After(deadline) {
			g.log.Debug("readiness budget exhausted for %s after %v", identity.String(), elapsed)
			return GateResult{ForceFresh: true, Waited: elapsed}
		}
	}
}

// publishProgress emits a fire-and-forget progress event.
func (g *Gate) publishProgress(queryID string, elapsed time.Duration) {
	percent := float64(elapsed) / float64(g.config.Budget) * 100
	if percent > 100 {
		percent = 100
	}

	event := bus.NewEvent(bus.EventProgress)
	event.QueryID = queryID
	event.Message = "waiting for screen analysis"
	event.Percent = percent
	g.events.Publish(event)
}
