package bridge

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultSubscriberBuffer is the number of events a subscriber may fall
// behind before events are dropped for it.
const DefaultSubscriberBuffer = 64

// Event is one host-to-tab push message. Seq increases by one per published
// event across all subscribers, so a gap tells a subscriber it missed events.
type Event struct {
	Seq     uint64 `json:"seq"`
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full loses the event.
type Hub struct {
	buffer int
	logger *zap.Logger

	mu     sync.Mutex
	seq    uint64
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription receives events until it is closed.
type Subscription struct {
	hub     *Hub
	ch      chan Event
	dropped atomic.Uint64
}

// NewHub creates a hub. buffer <= 0 uses DefaultSubscriberBuffer.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		buffer: buffer,
		logger: logger.With(zap.String("component", "bridge_hub")),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Publish delivers an event to every subscriber that has room for it.
func (h *Hub) Publish(name string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.seq++
	ev := Event{Seq: h.seq, Name: name, Payload: payload}
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			if sub.dropped.Add(1) == 1 {
				h.logger.Warn("slow subscriber, dropping events", zap.String("event", name))
			}
		}
	}
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Seq returns the sequence number of the last published event.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later publishes are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// Events returns the channel events arrive on. It is closed when the
// subscription or the hub is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were lost because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}
