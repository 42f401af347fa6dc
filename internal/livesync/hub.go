// Package livesync turns store writes into full-snapshot pushes for
// subscribers, in-process and across instances via redis.
package livesync

import "sync"

// Event says that a collection changed. Subscribers re-read the collection.
type Event struct {
	Collection string `json:"collection"`
	Origin     string `json:"origin,omitempty"`
}

// Hub fans events out per collection. Slow consumers drop events; since
// every event means "re-read", one pending event per subscriber is enough.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{} // collection -> set(ch)
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan Event]struct{}{}}
}

func (h *Hub) Subscribe(collections []string, buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan Event, buf)

	h.mu.Lock()
	for _, c := range collections {
		if h.subs[c] == nil {
			h.subs[c] = map[chan Event]struct{}{}
		}
		h.subs[c][ch] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			for _, c := range collections {
				if set, ok := h.subs[c]; ok {
					delete(set, ch)
					if len(set) == 0 {
						delete(h.subs, c)
					}
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Broadcast never blocks.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.Collection] {
		select {
		case ch <- ev:
		default:
			// a re-read is already pending
		}
	}
}

// Subscribers counts the listeners of a collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[collection])
}
