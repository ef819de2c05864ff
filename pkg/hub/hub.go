package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Hub tracks connected dashboard clients and broadcasts event frames to
// them. Clients that cannot keep up are dropped rather than allowed to
// stall the agent loop.
type Hub struct {
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// done is closed when Run exits so client pumps and late
	// registrations never block on a stopped hub.
	done chan struct{}

	mu sync.Mutex
}

// New creates a hub. Start Run before registering clients.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger.With("component", "hub"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run pumps registrations and broadcasts until ctx is done, then closes
// every client connection. Call it in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Debug("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("dashboard client connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("dashboard client disconnected", "remaining", count)

		case frame := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Too slow to keep up; cut it loose.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow dashboard client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a frame for every connected client. Frames are
// dropped when the queue is full; dashboard traffic is best-effort.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("broadcast queue full, dropping frame")
	}
}

// BroadcastEvent wraps payload in the standard envelope and queues it.
func (h *Hub) BroadcastEvent(kind string, payload any) error {
	data, err := json.Marshal(Event{Kind: kind, At: time.Now(), Data: payload})
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
