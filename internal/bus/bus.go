// ABOUTME: In-memory fan-out event bus for pileup state changes
// ABOUTME: Publishes typed events to all subscribers without blocking on slow consumers

package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of state change an event carries
type Type string

const (
	TypeConnected     Type = "connected"
	TypeQueueUpdate   Type = "queue_update"
	TypeCurrentQSO    Type = "current_qso"
	TypeSystemStatus  Type = "system_status"
	TypeFrequency     Type = "frequency_update"
	TypeSplit         Type = "split_update"
	TypeWorkedCallers Type = "worked_callers_update"
	TypeKeepalive     Type = "keepalive"
)

// critical reports whether an event of this type may be dropped under
// backpressure. Only keepalives are expendable; state events must reach
// every subscriber that stays connected.
func (t Type) critical() bool {
	return t != TypeKeepalive
}

// Event is a single typed state-change notification. Data is the payload
// the stream gateway serializes onto the wire.
type Event struct {
	Type      Type      `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	// maxPending is the per-subscriber queue bound. A subscriber that
	// falls further behind than this loses keepalives first, then its
	// subscription.
	maxPending = 64
)

// subscriber holds the per-connection pending queue and its pump state.
// The pending slice, not a raw channel, is the buffer: the overflow
// policy needs to inspect and remove queued keepalives.
type subscriber struct {
	id string

	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
	done    chan struct{}

	out chan Event
}

// enqueue appends an event, applying the overflow policy. Returns false
// when the subscriber is too far behind to keep: the queue is full and
// holds no droppable event.
func (s *subscriber) enqueue(evt Event) bool {
	s.mu.Lock()
	if len(s.pending) >= maxPending {
		if !s.dropOldestKeepaliveLocked() {
			s.mu.Unlock()
			return false
		}
	}
	s.pending = append(s.pending, evt)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// dropOldestKeepaliveLocked removes the oldest pending non-critical event.
// Caller holds s.mu.
func (s *subscriber) dropOldestKeepaliveLocked() bool {
	for i, evt := range s.pending {
		if !evt.Type.critical() {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// pump moves pending events to the outbound channel in FIFO order until
// the subscription is closed. It owns closing s.out.
func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		evt := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- evt:
		case <-s.done:
			return
		}
	}
}

// Subscription is a live registration on the bus. Events arrive on C in
// publish order; C is closed when the subscription ends.
type Subscription struct {
	ID string
	C  <-chan Event
}

// Bus fans published events out to all current subscriptions. Publish
// never blocks on a subscriber: each subscription has a bounded pending
// queue, and a subscriber that overruns it is disconnected.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	logger *slog.Logger
}

// New creates a bus. Pass nil logger for default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]*subscriber),
		logger: logger.With("component", "bus"),
	}
}

// Subscribe registers a new subscription. The subscription is
// automatically removed when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	sub := &subscriber{
		id:   uuid.New().String(),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Event),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go sub.pump()

	b.logger.Debug("subscriber added", "sub_id", sub.id)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(sub.id)
	}()

	return &Subscription{ID: sub.id, C: sub.out}
}

// Publish delivers an event to every current subscription. A subscriber
// whose queue is full loses its oldest pending keepalive; if there is
// none to drop, the subscriber is disconnected rather than blocking the
// publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if !sub.enqueue(evt) {
			b.logger.Warn("disconnecting slow subscriber", "sub_id", sub.id, "type", evt.Type)
			b.Unsubscribe(sub.id)
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Unsubscribe removes a subscription and closes its event channel.
// Safe to call more than once.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	close(sub.done)

	b.logger.Debug("subscriber removed", "sub_id", id)
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}

	b.logger.Debug("bus closed")
}
