// Notification hub: fans change events out to connected clients.

package bridge

import (
	"sync"

	"github.com/maruel/ksid"
	"github.com/tracklab/trove/internal/object"
)

// Event names on the notification channel.
const (
	EventCreated = "object-created"
	EventChanged = "object-changed"
	EventDeleted = "object-deleted"
)

// Event is a published record mutation. Events are immutable and ephemeral:
// they are never persisted, only delivered to current subscribers.
type Event struct {
	Name  string       `json:"-"`
	OType object.OType `json:"otype"`
	OID   ksid.ID      `json:"oid"`
}

// Hub delivers events to subscribers.
//
// Publish never blocks: a subscriber whose buffer is full misses events.
// Per-subscriber ordering of delivered events matches publish order.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber with the given channel buffer size.
// The returned cancel function unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers the event to all current subscribers without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close shuts the hub down, closing all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan Event]struct{})
}
