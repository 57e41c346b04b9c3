// Package server exposes the fire-and-forget UI feedback channel: a
// websocket stream of bus events plus a JSON status endpoint. Presentation
// layers subscribe here; nothing in the pipeline depends on whether anyone
// is listening.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/normanking/glance/internal/bus"
	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/internal/metrics"
)

const clientBuffer = 64

// EventServer streams bus events to websocket clients.
type EventServer struct {
	events    *bus.Bus
	collector *metrics.Collector
	log       *logging.Logger
	upgrader  websocket.Upgrader
	server    *http.Server

	mu      sync.Mutex
	clients map[*client]struct{}
	subID   bus.SubscriptionID
}

type client struct {
	conn *websocket.Conn
	send chan bus.Event
}

// New creates an event server bound to addr.
func New(addr string, events *bus.Bus, collector *metrics.Collector) *EventServer {
	s := &EventServer{
		events:    events,
		collector: collector,
		log:       logging.Global().WithComponent("EventServer"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local UI clients only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/status", s.handleStatus)

	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving and forwarding bus events. It returns immediately;
// serving errors other than a clean shutdown are logged.
func (s *EventServer) Start() {
	s.subID = s.events.Subscribe("", s.broadcast) // wildcard

	go func() {
		s.log.Info("listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("event server: %v", err)
		}
	}()
}

// Stop closes all client connections and shuts the server down.
func (s *EventServer) Stop(ctx context.Context) error {
	s.events.Unsubscribe(s.subID)

	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()

	return s.server.Shutdown(ctx)
}

// broadcast fans an event out to all connected clients, dropping for any
// client whose buffer is full.
func (s *EventServer) broadcast(event bus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- event:
		default:
		}
	}
}

// handleEvents upgrades the connection and streams events until the client
// goes away.
func (s *EventServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan bus.Event, clientBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	// Replay recent history so a late-joining UI has context.
	for _, event := range s.events.History() {
		select {
		case c.send <- event:
		default:
		}
	}

	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop drains the client's send buffer onto the wire.
func (s *EventServer) writeLoop(c *client) {
	defer c.conn.Close()
	for event := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteJSON(event); err != nil {
			s.drop(c)
			return
		}
	}
}

// readLoop discards inbound frames and detects disconnects.
func (s *EventServer) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.drop(c)
			return
		}
	}
}

// drop removes a client; idempotent across the read and write loops.
func (s *EventServer) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// handleStatus serves the collector's session statistics.
func (s *EventServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var stats metrics.SessionStats
	if s.collector != nil {
		stats = s.collector.Snapshot()
	}
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.log.Warn("encode status: %v", err)
	}
}
