package dashboard

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// subscriberBuffer is the per-client queue depth. A full queue drops events
// for that client only.
const subscriberBuffer = 64

// Event is one named message pushed to dashboard clients.
type Event struct {
	ID   uint64
	Name string
	Data []byte
}

// Hub fans events out to subscribers. The latest event of each name is kept
// for ttl so a client that connects between pushes sees current values.
type Hub struct {
	latest *cache.Cache
	seq    atomic.Uint64

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewHub creates a Hub. Cached events expire after ttl.
func NewHub(ttl time.Duration) *Hub {
	return &Hub{
		latest:      cache.New(ttl, 2*ttl),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Publish encodes v as JSON and delivers it to every subscriber.
func (h *Hub) Publish(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	ev := Event{ID: h.seq.Add(1), Name: name, Data: data}
	h.latest.SetDefault(name, ev)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a new client. Callers must Unsubscribe when done.
func (h *Hub) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel. Unknown channels are ignored.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		if sub == ch {
			delete(h.subscribers, sub)
			close(sub)
			return
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Latest returns the unexpired cached events in publish order.
func (h *Hub) Latest() []Event {
	items := h.latest.Items()
	out := make([]Event, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Event))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
