package services

import (
	"sync"
	"time"
)

// EngagementEvent is broadcast after a view or rating changed a project's counters.
type EngagementEvent struct {
	ProjectID uint      `json:"project_id"`
	UserRef   string    `json:"user_entity_ref"`
	Kind      string    `json:"kind"` // view, rate, unrate
	Views     int       `json:"project_views"`
	Rating    int       `json:"project_rating"`
	At        time.Time `json:"at"`
}

// EventPublisher receives engagement events.
type EventPublisher interface {
	Publish(event EngagementEvent)
}

// EventHub fans engagement events out to SSE clients.
type EventHub struct {
	clients map[string]chan EngagementEvent
	mu      sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[string]chan EngagementEvent),
	}
}

// Subscribe registers a client and returns its event channel.
func (h *EventHub) Subscribe(clientID string) <-chan EngagementEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan EngagementEvent, 100)
	h.clients[clientID] = ch
	return ch
}

func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. Clients whose buffer
// is full miss the event.
func (h *EventHub) Publish(event EngagementEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
