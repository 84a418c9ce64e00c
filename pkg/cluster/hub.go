package cluster

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbshrst/talos-discovery/pkg/metrics"
	"github.com/tbshrst/talos-discovery/pkg/types"
)

// BufferSize is the capacity of each subscriber's event queue. A subscriber
// that falls more than BufferSize events behind starts losing the oldest
// undelivered events.
const BufferSize = 64

// Event is one watch notification. When Deleted is false, Affiliates is the
// entire current membership of the cluster. When Deleted is true, Affiliates
// is the batch removed by the last GC sweep.
type Event struct {
	Affiliates []*types.Affiliate
	Deleted    bool
}

// Hub fans out watch events to a dynamic set of subscribers. Publishing
// never blocks: each subscriber has a bounded queue and overflow evicts the
// oldest undelivered event for that subscriber only.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
	logger zerolog.Logger
}

// Subscription is one subscriber's bounded event queue. The channel is
// closed when the owning cluster is removed from the registry.
type Subscription struct {
	id  string
	ch  chan *Event
	hub *Hub
}

// Events returns the subscriber's receive channel.
func (s *Subscription) Events() <-chan *Event {
	return s.ch
}

// Close detaches the subscription from the hub. Safe to call after the hub
// itself has been closed.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.id)
}

func newHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a new subscriber. A non-nil initial event is
// pre-loaded into the queue before any publish can reach it; the queue is
// freshly created with capacity BufferSize, so the pre-load cannot block.
func (h *Hub) Subscribe(initial *Event) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		id:  uuid.New().String(),
		ch:  make(chan *Event, BufferSize),
		hub: h,
	}

	if h.closed {
		// Cluster already removed; terminate the stream immediately.
		close(sub.ch)
		return sub
	}

	if initial != nil {
		sub.ch <- initial
	}

	h.subs[sub.id] = sub
	metrics.WatchSubscribers.Inc()
	return sub
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[id]; !ok {
		return
	}

	delete(h.subs, id)
	metrics.WatchSubscribers.Dec()
}

// Publish delivers the event to every subscriber with a non-blocking send.
// When a subscriber's queue is full, the oldest undelivered event is evicted
// so delivery resumes with the newest state. With no subscribers it is a
// no-op.
func (h *Hub) Publish(ev *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.subs) == 0 {
		return
	}

	for _, sub := range h.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}

		// Queue full: evict the oldest undelivered event, then retry. Only
		// this publisher fills the queue, so after the eviction the retry
		// has room even if the consumer drained the queue in between.
		select {
		case <-sub.ch:
			metrics.WatchEventsDroppedTotal.Inc()
			h.logger.Debug().Str("subscription_id", sub.id).Msg("Dropped watch event for slow subscriber")
		default:
		}

		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close terminates every subscription. Subscribers observe the closed
// channel as end-of-stream. A closed hub accepts no further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
		metrics.WatchSubscribers.Dec()
	}
}

// SubscriberCount returns the number of active subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
