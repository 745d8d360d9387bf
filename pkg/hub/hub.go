// Package hub fans JSON state snapshots out to websocket clients. One Run
// goroutine owns the client set and each client has its own writer.
//
// Every frame is a complete snapshot, so a client that falls behind only
// ever receives the newest one: a pending frame is replaced rather than
// queued, and no client is dropped for being slow.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub holds the connected clients of one snapshot stream.
type Hub struct {
	name   string
	logger *slog.Logger

	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running atomic.Bool
	done    chan struct{}

	// last is replayed to clients as they connect.
	last atomic.Pointer[[]byte]
}

// New creates a hub; name tags its log lines.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run fans snapshots out until ctx is cancelled, then closes every client.
// A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			if last := h.Last(); last != nil {
				client.offer(last)
			}
			h.logger.Debug("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "clients", count)

		case frame := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.offer(frame) {
					h.logger.Debug("replaced stale snapshot for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast publishes a JSON snapshot. It never blocks; if Run is behind,
// the frame is still kept as the replay for new clients.
func (h *Hub) Broadcast(frame []byte) {
	h.last.Store(&frame)
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("broadcast queue full, dropping snapshot")
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Last returns the most recent snapshot, or nil.
func (h *Hub) Last() []byte {
	p := h.last.Load()
	if p == nil {
		return nil
	}
	return *p
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
