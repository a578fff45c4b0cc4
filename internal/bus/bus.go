// Package bus implements the in-process publish/subscribe event bus.
//
// Every envelope emitted by the orchestrator or command handler is fanned
// out to all live subscribers. Each subscriber owns a bounded FIFO queue;
// when a queue is full the oldest envelope is dropped so that publishers
// never block and a slow subscriber cannot stall the rest of the system.
package bus

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Jas0nOW/Vox-Voice/internal/observe"
	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

// QueueCapacity is the bounded depth of each subscriber queue.
const QueueCapacity = 10_000

// ErrClosed is returned by [Bus.Subscribe] after [Bus.Close].
var ErrClosed = errors.New("bus: closed")

// Subscription is one subscriber's handle onto the bus. Consume envelopes
// from [Subscription.Events]; call [Bus.Unsubscribe] when done.
type Subscription struct {
	ch chan types.Envelope
}

// Events returns the subscriber's queue. The channel is closed when the
// subscription is removed, releasing any blocked consumer.
func (s *Subscription) Events() <-chan types.Envelope {
	return s.ch
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithCapacity overrides the per-subscriber queue depth. Intended for tests;
// production uses [QueueCapacity].
func WithCapacity(n int) Option {
	return func(b *Bus) { b.capacity = n }
}

// WithMetrics attaches metric instruments for publish/drop accounting.
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// Bus is the fan-out hub. All methods are safe for concurrent use.
//
// Publish never blocks and never fails; the only failure surface is
// Subscribe after shutdown.
type Bus struct {
	capacity int
	metrics  *observe.Metrics

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		capacity: QueueCapacity,
		subs:     make(map[*Subscription]struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers a new bounded queue and returns its handle.
// Returns [ErrClosed] once the bus has been shut down.
func (b *Bus) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &Subscription{ch: make(chan types.Envelope, b.capacity)}
	b.subs[s] = struct{}{}
	if b.metrics != nil {
		b.metrics.BusSubscribers.Add(context.Background(), 1)
	}
	return s, nil
}

// Unsubscribe removes the queue and closes its channel, releasing any
// consumer blocked on it. Safe to call more than once.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
	if b.metrics != nil {
		b.metrics.BusSubscribers.Add(context.Background(), -1)
	}
}

// Publish fans ev out to every live subscriber without blocking. On a full
// queue the oldest envelope is dequeued and the send retried once; if the
// queue is still full the new envelope is dropped for that subscriber only.
// Per-subscriber delivery order equals publish order for envelopes that
// survive the drop policy.
func (b *Bus) Publish(ev types.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.EventsPublished.Add(context.Background(), 1)
	}
	for s := range b.subs {
		select {
		case s.ch <- ev:
			continue
		default:
		}

		// Queue full: steal the oldest entry, then retry once. The consumer
		// may race us for the head; either way one slot frees up.
		select {
		case <-s.ch:
			b.countDrop("oldest")
		default:
		}
		select {
		case s.ch <- ev:
		default:
			b.countDrop("newest")
		}
	}
}

// Close shuts the bus down. Existing subscriptions are removed and their
// channels closed; later Subscribe calls fail with [ErrClosed].
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) countDrop(reason string) {
	if b.metrics == nil {
		return
	}
	b.metrics.EventsDropped.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}
