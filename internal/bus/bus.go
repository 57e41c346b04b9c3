package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// DefaultHistorySize is the number of recent events retained for replay.
	DefaultHistorySize = 256

	// DefaultChannelBuffer is the buffer size for subscriber channels.
	// When a subscriber's buffer is full the event is dropped for that
	// subscriber; Publish never blocks.
	DefaultChannelBuffer = 64
)

// SubscriptionID is a unique identifier for event subscriptions.
type SubscriptionID string

// subscription represents a single event subscription.
type subscription struct {
	id        SubscriptionID
	eventType EventType
	handler   func(Event)
	ch        chan Event
	done      chan struct{}
}

// Bus is a thread-safe pub/sub event channel with wildcard support and a
// bounded replay history.
type Bus struct {
	mu         sync.RWMutex
	subs       map[SubscriptionID]*subscription
	typed      map[EventType]map[SubscriptionID]*subscription
	wildcard   map[SubscriptionID]*subscription
	subCounter uint64

	historyMu   sync.RWMutex
	history     []Event
	historySize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a new Bus with default configuration.
func New() *Bus {
	return NewWithHistory(DefaultHistorySize)
}

// NewWithHistory creates a new Bus with a custom history size.
func NewWithHistory(historySize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	return &Bus{
		subs:        make(map[SubscriptionID]*subscription),
		typed:       make(map[EventType]map[SubscriptionID]*subscription),
		wildcard:    make(map[SubscriptionID]*subscription),
		history:     make([]Event, 0, historySize),
		historySize: historySize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers a handler for a specific event type.
// Use EventType("") to subscribe to all events (wildcard).
func (b *Bus) Subscribe(eventType EventType, handler func(Event)) SubscriptionID {
	if b.closed.Load() {
		return ""
	}

	b.mu.Lock()
	b.subCounter++
	id := SubscriptionID(fmt.Sprintf("sub_%d", b.subCounter))

	sub := &subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
		ch:        make(chan Event, DefaultChannelBuffer),
		done:      make(chan struct{}),
	}

	b.subs[id] = sub
	if eventType == "" {
		b.wildcard[id] = sub
	} else {
		if b.typed[eventType] == nil {
			b.typed[eventType] = make(map[SubscriptionID]*subscription)
		}
		b.typed[eventType][id] = sub
	}
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(sub)

	return id
}

// run dispatches events to a single subscription's handler.
func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()

	for {
		select {
		case event := <-sub.ch:
			sub.handler(event)
		case <-sub.done:
			return
		case <-b.ctx.Done():
			return
		}
	}
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.mu.Lock()
	sub, exists := b.subs[id]
	if !exists {
		b.mu.Unlock()
		return fmt.Errorf("subscription %s not found", id)
	}
	delete(b.subs, id)
	if sub.eventType == "" {
		delete(b.wildcard, id)
	} else if typed, ok := b.typed[sub.eventType]; ok {
		delete(typed, id)
		if len(typed) == 0 {
			delete(b.typed, sub.eventType)
		}
	}
	b.mu.Unlock()

	close(sub.done)
	return nil
}

// Publish sends an event to all matching subscribers. Subscribers with full
// buffers are skipped so the publisher is never blocked.
func (b *Bus) Publish(event Event) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.addToHistory(event)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.wildcard {
		select {
		case sub.ch <- event:
		default:
			// Full buffer: drop for this subscriber.
		}
	}

	if typed, ok := b.typed[event.Type]; ok {
		for _, sub := range typed {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}

	return nil
}

// addToHistory appends an event to the bounded history buffer.
func (b *Bus) addToHistory(event Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history = append(b.history, event)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
}

// History returns a copy of the recent event history.
func (b *Bus) History() []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	result := make([]Event, len(b.history))
	copy(result, b.history)
	return result
}

// SubscriptionsCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionsCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts down the bus and all subscriptions.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("bus already closed")
	}

	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[SubscriptionID]*subscription)
	b.typed = make(map[EventType]map[SubscriptionID]*subscription)
	b.wildcard = make(map[SubscriptionID]*subscription)

	return nil
}
