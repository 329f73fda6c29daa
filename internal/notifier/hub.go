// Package notifier fans committed status transitions out to
// subscribers. Delivery is fire-and-forget: a slow or disconnected
// subscriber loses events rather than ever blocking a seat state
// commit. Each subscriber's channel is FIFO, so the transitions of a
// single seat arrive in the order they were committed.
package notifier

import (
	"sync"

	"seatwatch/internal/model"
)

// subscriber channel depth; transitions beyond this are dropped for
// that subscriber only.
const subscriberBuffer = 64

// Hub is an in-process transition broadcaster.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan model.StatusTransition
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan model.StatusTransition)}
}

// Subscribe registers a new subscriber and returns its channel along
// with a cancel function. The channel is closed on cancel.
func (h *Hub) Subscribe() (<-chan model.StatusTransition, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan model.StatusTransition, subscriberBuffer)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers t to every current subscriber without blocking.
func (h *Hub) Publish(t model.StatusTransition) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- t:
		default: // subscriber is full; drop rather than block the commit path
		}
	}
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
