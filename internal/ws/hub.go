package ws

import (
	"encoding/json"
	"sort"
	"sync"
)

// Handler receives the raw payload of an inbound event.
type Handler func(data json.RawMessage)

// Hub routes inbound events to the handlers subscribed to them. It outlives
// individual transports so subscriptions survive reconnects.
type Hub struct {
	handlers map[string]map[uint64]Handler
	next     uint64
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{handlers: make(map[string]map[uint64]Handler)}
}

// Add subscribes fn to event and returns the matching unsubscribe func.
func (h *Hub) Add(event string, fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	if _, ok := h.handlers[event]; !ok {
		h.handlers[event] = make(map[uint64]Handler)
	}
	h.handlers[event][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(event, id) })
	}
}

// On is Add under the Subscriber name so a Hub can back a Scope directly.
func (h *Hub) On(event string, fn Handler) func() {
	return h.Add(event, fn)
}

func (h *Hub) remove(event string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.handlers[event]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.handlers, event)
		}
	}
}

// Dispatch invokes every handler of event in subscription order and returns
// how many ran.
func (h *Hub) Dispatch(event string, data json.RawMessage) int {
	h.mu.RLock()
	subs := h.handlers[event]
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]Handler, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, subs[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(data)
	}
	return len(fns)
}

// Count returns the number of handlers subscribed to event.
func (h *Hub) Count(event string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[event])
}
