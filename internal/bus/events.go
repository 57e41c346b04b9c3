// Package bus provides the one-way event channel between the screen-cache
// actor and the query-handling side. Publishing is fire-and-forget: pipeline
// correctness never depends on whether anything is listening.
package bus

import (
	"fmt"
	"sync/atomic"
	"time"
)

// EventType represents the type of event flowing through the bus.
type EventType string

const (
	// Actor-side notifications
	EventWindowChanged     EventType = "window_changed"
	EventAnalysisRequested EventType = "analysis_requested"
	EventAnalysisFailed    EventType = "analysis_failed"
	EventCacheUpdated      EventType = "cache_updated"
	EventAnalyzerDegraded  EventType = "analyzer_degraded"
	EventAnalyzerRecovered EventType = "analyzer_recovered"

	// Query-side notifications (UI feedback)
	EventProgress        EventType = "progress"
	EventQueryStarted    EventType = "query_started"
	EventQueryCompleted  EventType = "query_completed"
	EventAnswerRetried   EventType = "answer_retried"
	EventDegradedMode    EventType = "degraded_mode"
)

// Event is a single notification on the bus.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// Subject
	Identity string `json:"identity,omitempty"` // window identity key
	QueryID  string `json:"query_id,omitempty"`

	// Content
	Message string  `json:"message,omitempty"`
	Percent float64 `json:"percent,omitempty"` // 0-100 for progress events
	Error   string  `json:"error,omitempty"`
}

// eventIDCounter for generating unique event IDs.
var eventIDCounter atomic.Uint64

// NewEvent creates a new event with the current timestamp and generated ID.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:        fmt.Sprintf("evt_%d_%d", time.Now().UnixNano(), eventIDCounter.Add(1)),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}
