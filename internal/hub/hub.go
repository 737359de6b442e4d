// Package hub fans drift run notifications out to Server-Sent Events clients.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"hostdrift/internal/domain"
)

// EventRun is sent when a compare run has been stored
const EventRun = "run"

// Event is one SSE message
type Event struct {
	Type string
	Data any
}

type client struct {
	id     string
	events chan []byte
}

// Hub manages SSE client connections
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	keepalive  time.Duration
}

// New creates a new Hub
func New() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		keepalive:  30 * time.Second,
	}
}

// WithKeepalive sets the interval between keepalive comments
func (h *Hub) WithKeepalive(d time.Duration) *Hub {
	h.keepalive = d
	return h
}

// encode renders an event in SSE wire format
func encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, data)), nil
}

// Run starts the hub's event loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("hub: client %s connected (total: %d)", c.id, n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.events)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("hub: client %s disconnected (total: %d)", c.id, n)

		case e := <-h.broadcast:
			msg, err := encode(e)
			if err != nil {
				log.Printf("hub: failed to encode %s event: %v", e.Type, err)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.events <- msg:
				default:
					log.Printf("hub: client %s is slow, skipping %s event", c.id, e.Type)
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.events)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues an event for every connected client
func (h *Hub) Broadcast(e Event) {
	select {
	case h.broadcast <- e:
	default:
		log.Printf("hub: broadcast queue full, dropping %s event", e.Type)
	}
}

// PublishRun announces a stored run
func (h *Hub) PublishRun(r *domain.Report) {
	h.Broadcast(Event{Type: EventRun, Data: domain.NewRunSummary(r)})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP streams events to one client until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &client{
		id:     uuid.NewString()[:8],
		events: make(chan []byte, 16),
	}

	select {
	case h.register <- c:
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- c:
		case <-time.After(time.Second):
		}
	}()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
