// Package metrics aggregates pipeline activity from the event bus into
// session statistics for the status endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/normanking/glance/internal/bus"
)

// SessionStats holds counters for the current process lifetime.
type SessionStats struct {
	StartTime        time.Time `json:"start_time"`
	WindowChanges    int       `json:"window_changes"`
	AnalysisRequests int       `json:"analysis_requests"`
	AnalysisFailures int       `json:"analysis_failures"`
	CacheUpdates     int       `json:"cache_updates"`
	Queries          int       `json:"queries"`
	QueriesCompleted int       `json:"queries_completed"`
	Retries          int       `json:"retries"`
	DegradedAnswers  int       `json:"degraded_answers"`
	LastEvent        string    `json:"last_event,omitempty"`
	LastEventTime    time.Time `json:"last_event_time,omitempty"`
}

// Collector subscribes to the event bus and aggregates session statistics.
type Collector struct {
	bus *bus.Bus

	mu      sync.RWMutex
	stats   SessionStats
	subID   bus.SubscriptionID
	started bool
}

// NewCollector creates a metrics collector over the bus.
func NewCollector(events *bus.Bus) *Collector {
	return &Collector{
		bus:   events,
		stats: SessionStats{StartTime: time.Now()},
	}
}

// Start begins listening. Safe to call once.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.bus == nil {
		return
	}
	c.started = true
	c.subID = c.bus.Subscribe("", c.handleEvent) // wildcard
}

// Stop detaches from the bus.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	c.bus.Unsubscribe(c.subID)
}

// Snapshot returns a copy of the current session statistics.
func (c *Collector) Snapshot() SessionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Collector) handleEvent(event bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Type {
	case bus.EventWindowChanged:
		c.stats.WindowChanges++
	case bus.EventAnalysisRequested:
		c.stats.AnalysisRequests++
	case bus.EventAnalysisFailed:
		c.stats.AnalysisFailures++
	case bus.EventCacheUpdated:
		c.stats.CacheUpdates++
	case bus.EventQueryStarted:
		c.stats.Queries++
	case bus.EventQueryCompleted:
		c.stats.QueriesCompleted++
	case bus.EventAnswerRetried:
		c.stats.Retries++
	case bus.EventDegradedMode:
		c.stats.DegradedAnswers++
	}

	c.stats.LastEvent = string(event.Type)
	c.stats.LastEventTime = event.Timestamp
}
