package serve

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"pitchmodel/internal/metrics"
)

// Feed broadcasts training progress points to connected WebSocket clients.
type Feed struct {
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
}

// FeedEvent is a single broadcast training update.
type FeedEvent struct {
	Batch     int       `json:"batch"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFeed creates an empty feed with no clients.
func NewFeed(m *metrics.Metrics) *Feed {
	return &Feed{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: m,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handler returns the WebSocket upgrade handler for mounting on a mux.
func (f *Feed) Handler() http.HandlerFunc { return f.handleConnect }

func (f *Feed) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("feed upgrade failed")
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	f.clients[conn] = true
	n := len(f.clients)
	f.mu.Unlock()
	f.metrics.FeedClients.Set(float64(n))
	log.Info().Str("remote", r.RemoteAddr).Int("clients", n).Msg("feed client connected")

	// Drain reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.drop(conn)
				return
			}
		}
	}()
}

// Broadcast sends an event to every connected client, dropping clients
// whose writes fail.
func (f *Feed) Broadcast(ev FeedEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	f.mu.Lock()
	var failed []*websocket.Conn
	for conn := range f.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		conn.Close()
		delete(f.clients, conn)
	}
	n := len(f.clients)
	f.mu.Unlock()
	f.metrics.FeedClients.Set(float64(n))
}

// ClientCount reports the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects all clients and rejects new connections.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for conn := range f.clients {
		conn.Close()
		delete(f.clients, conn)
	}
	f.metrics.FeedClients.Set(0)
}

func (f *Feed) drop(conn *websocket.Conn) {
	f.mu.Lock()
	if _, ok := f.clients[conn]; ok {
		conn.Close()
		delete(f.clients, conn)
	}
	n := len(f.clients)
	f.mu.Unlock()
	f.metrics.FeedClients.Set(float64(n))
}
