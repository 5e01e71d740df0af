// Package eventbus broadcasts AgentEvents from one producer (the
// executor) to N independent subscribers, generalizing the teacher's
// single-stream BackpressureSink into per-subscriber bounded queues.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/arclight-ai/sentinel/pkg/models"
)

// DefaultQueueSize is the default bound on a subscriber's event queue.
const DefaultQueueSize = 100

// Subscription is a handle over which a subscriber receives events in
// publish order. Events arrives on Events(); the subscription auto-closes
// (Events() channel closes) once a terminal event has been delivered and
// drained, or when Close is called explicitly.
type Subscription struct {
	id     uint64
	ch     chan models.AgentEvent
	bus    *Bus
	once   sync.Once
}

// Events returns the channel events arrive on. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan models.AgentEvent {
	return s.ch
}

// Close unsubscribes and closes the channel. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s.id)
		close(s.ch)
	})
}

// Bus is a process-wide typed event broadcaster. The zero value is not
// usable; construct with New.
type Bus struct {
	mu        sync.Mutex
	nextID    uint64
	subs      map[uint64]chan models.AgentEvent
	queueSize int
	logger    *slog.Logger
}

// New creates a Bus whose subscriber queues are bounded to queueSize
// (DefaultQueueSize if queueSize <= 0).
func New(queueSize int, logger *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:      map[uint64]chan models.AgentEvent{},
		queueSize: queueSize,
		logger:    logger,
	}
}

// Subscribe registers a new subscriber and returns its Subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan models.AgentEvent, b.queueSize)
	b.subs[id] = ch
	return &Subscription{id: id, ch: ch, bus: b}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish broadcasts e to every current subscriber without blocking the
// producer. A subscriber whose queue is full is dropped — surviving
// subscribers never lose events because of one slow reader. Subscribers
// that received a terminal event are closed and removed after delivery.
func (b *Bus) Publish(e models.AgentEvent) {
	b.mu.Lock()
	targets := make(map[uint64]chan models.AgentEvent, len(b.subs))
	for id, ch := range b.subs {
		targets[id] = ch
	}
	b.mu.Unlock()

	for id, ch := range targets {
		select {
		case ch <- e:
			if e.Type.Terminal() {
				b.mu.Lock()
				if cur, ok := b.subs[id]; ok && cur == ch {
					delete(b.subs, id)
					close(ch)
				}
				b.mu.Unlock()
			}
		default:
			b.logger.Warn("eventbus: subscriber queue full, dropping subscriber",
				"subscriber_id", id, "event_type", string(e.Type))
			b.mu.Lock()
			if cur, ok := b.subs[id]; ok && cur == ch {
				delete(b.subs, id)
				close(ch)
			}
			b.mu.Unlock()
		}
	}
}

// SubscriberCount returns the number of currently active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
