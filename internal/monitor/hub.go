package monitor

import (
	"sync"
	"sync/atomic"

	"github.com/rickgao/protohackers/internal/server"
)

// DefaultWatcherBuffer is the per-watcher event queue length.
const DefaultWatcherBuffer = 256

// Hub fans session events out to websocket watchers. It implements
// server.EventPublisher and never blocks the publisher: a watcher whose queue
// is full misses the event.
type Hub struct {
	mu       sync.Mutex
	watchers map[*watcher]struct{}
	closed   bool

	published atomic.Int64
	dropped   atomic.Int64
}

type watcher struct {
	events chan server.Event
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[*watcher]struct{})}
}

// Publish delivers e to every watcher that has room for it.
func (h *Hub) Publish(e server.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.published.Add(1)
	for w := range h.watchers {
		select {
		case w.events <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close disconnects all watchers. Later subscriptions are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for w := range h.watchers {
		close(w.events)
		delete(h.watchers, w)
	}
}

// Watchers returns the number of connected watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// HubStats contains fan-out statistics.
type HubStats struct {
	Watchers  int   `json:"watchers"`
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
}

// Stats returns fan-out statistics.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Watchers:  h.Watchers(),
		Published: h.published.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// subscribe registers a watcher. It returns nil after Close.
func (h *Hub) subscribe(buffer int) *watcher {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	w := &watcher{events: make(chan server.Event, buffer)}
	h.watchers[w] = struct{}{}
	return w
}

func (h *Hub) unsubscribe(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.watchers[w]; ok {
		delete(h.watchers, w)
		close(w.events)
	}
}
