package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/glance/internal/bus"
	"github.com/normanking/glance/internal/metrics"
)

func newTestServer(t *testing.T) (*EventServer, *bus.Bus, *httptest.Server) {
	t.Helper()

	events := bus.New()
	collector := metrics.NewCollector(events)
	collector.Start()

	s := New("127.0.0.1:0", events, collector)
	s.subID = events.Subscribe("", s.broadcast)

	ts := httptest.NewServer(s.server.Handler)
	t.Cleanup(func() {
		ts.Close()
		collector.Stop()
		events.Close()
	})
	return s, events, ts
}

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventStream(t *testing.T) {
	_, events, ts := newTestServer(t)
	conn := dialEvents(t, ts)

	published := bus.NewEvent(bus.EventCacheUpdated)
	published.Identity = "Chrome|https://a.com"
	events.Publish(published)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var got bus.Event
		require.NoError(t, conn.ReadJSON(&got))
		if got.Type == bus.EventCacheUpdated {
			assert.Equal(t, "Chrome|https://a.com", got.Identity)
			return
		}
	}
}

func TestEventStreamReplaysHistory(t *testing.T) {
	_, events, ts := newTestServer(t)

	// Published before any client connects.
	events.Publish(bus.NewEvent(bus.EventWindowChanged))
	time.Sleep(20 * time.Millisecond)

	conn := dialEvents(t, ts)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got bus.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, bus.EventWindowChanged, got.Type)
}

func TestStatusEndpoint(t *testing.T) {
	_, events, ts := newTestServer(t)

	events.Publish(bus.NewEvent(bus.EventQueryStarted))
	time.Sleep(20 * time.Millisecond)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats metrics.SessionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Queries)
	assert.False(t, stats.StartTime.IsZero())
}
