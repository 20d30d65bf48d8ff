package orchestrator

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventKind names one broadcast event kind. Order of delivery is the order
// of orchestrator-side emission; there is no replay on reconnect.
type EventKind string

const (
	EventStateUpdate        EventKind = "state_update"
	EventProposal           EventKind = "proposal"
	EventVote               EventKind = "vote"
	EventElimination        EventKind = "elimination"
	EventEnd                EventKind = "end"
	EventMessage            EventKind = "message"
	EventPlayerDisconnected EventKind = "player_disconnected"
	EventPresence           EventKind = "presence"
)

// Event is one broadcast payload for a gameId's subscriber set.
type Event struct {
	Kind EventKind   `json:"kind"`
	Data interface{} `json:"data"`
}

// Hub is a per-gameId publish/subscribe broadcaster, generalized from the
// teacher's single global websocket Hub (internal/api/websocket.go) into
// one instance per game: a drop-slow-subscriber send discipline, scoped to
// the one gameId it serves.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
}

// NewHub builds an empty Hub for one gameId.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// Subscribe admits conn to this game's subscriber set.
func (h *Hub) Subscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		conn.Close()
		return
	}
	h.clients[conn] = true
}

// Unsubscribe removes conn; implicit on transport close.
func (h *Hub) Unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Publish sends ev to every current subscriber, in this call's order. Each
// write is synchronous under the hub lock with a 5-second write deadline, so
// a slow subscriber delays the publish by up to that deadline; a subscriber
// whose write errors or times out is closed and dropped.
func (h *Hub) Publish(ev Event) {
	blob, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[orchestrator] failed to marshal broadcast event %s: %v", ev.Kind, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, blob); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Close closes every subscriber connection and marks the hub closed; no
// further publishes take effect. Called on orchestrator shutdown for a
// game (Testable Property 9: cancellation stops further broadcasts).
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
