// Package eventbus implements the Event Bus (C3): a process-local,
// topic-keyed publish/subscribe facility. One Bus[T] instance exists
// per event type — a typed channel keyed at compile time rather than
// the teacher's single dynamically-typed envelope-and-downcast
// carrier, per spec §9's own re-architecture guidance ("prefer a
// per-topic typed channel keyed at compile time... the dynamic
// downcast in the original is a programmer-error path, not a recovery
// path").
//
// The delivery and backpressure model is grounded on the teacher's
// Broadcaster (internal/service/media/media.go): an RWMutex-guarded
// map of per-subscriber channels, buffered 8 deep. It generalizes one
// piece of that pattern: where the teacher drops a slow subscriber
// entirely on a full queue, spec §4.3 calls for dropping only the
// oldest undelivered event and surfacing the loss to the subscriber
// as an observable gap, so a slow reader degrades instead of being
// silently disconnected.
package eventbus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueueCapacity is the bounded per-subscriber queue depth (spec §4.3).
const QueueCapacity = 8

// Envelope wraps a published payload with the gap the receiving
// subscriber experienced immediately before this event: the count of
// events dropped from its queue since the last one it read.
type Envelope[T any] struct {
	Payload T
	Gap     int
}

// Bus is a single topic's fan-out facility. Construct one per event
// type (e.g. `eventbus.New[MediumItemCreated](log)`).
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber[T]
	log    *zap.Logger
	onDrop func()
}

type subscriber[T any] struct {
	mu       sync.Mutex
	buf      []T
	dropped  int // total events evicted from buf so far, monotonic
	reported int // dropped value as of the last Recv
	notify   chan struct{}
}

// New constructs an empty Bus. log may be nil.
func New[T any](log *zap.Logger) *Bus[T] {
	return &Bus[T]{
		subs: make(map[string]*subscriber[T]),
		log:  log,
	}
}

// OnDrop registers a callback invoked once per event evicted from any
// subscriber's queue on overflow (spec §4.3). Callers use this to
// surface drops to an external metrics collector without this package
// depending on one. Not safe to call concurrently with Publish.
func (b *Bus[T]) OnDrop(fn func()) {
	b.onDrop = fn
}

// Subscription is a live registration returned by Subscribe. Callers
// must call Close when done to free the subscriber's queue.
type Subscription[T any] struct {
	id  string
	bus *Bus[T]
	sub *subscriber[T]
}

// Subscribe registers a new subscriber and returns a handle to read
// from it. Subscribing late never yields events published before this
// call — the bus buffers no history (spec §4.3).
func (b *Bus[T]) Subscribe() *Subscription[T] {
	sub := &subscriber[T]{notify: make(chan struct{}, 1)}
	id := uuid.NewString()

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	return &Subscription[T]{id: id, bus: b, sub: sub}
}

// Close unregisters the subscription. Any events still queued are
// discarded.
func (s *Subscription[T]) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

// Recv blocks until an event is available, ctx is done, or the
// subscription is closed concurrently by another goroutine (in which
// case Recv keeps waiting on ctx — callers own their own cancellation).
// The returned Envelope.Gap is the number of events dropped from this
// subscriber's queue immediately before the returned one.
func (s *Subscription[T]) Recv(ctx context.Context) (Envelope[T], bool) {
	for {
		s.sub.mu.Lock()
		if len(s.sub.buf) > 0 {
			payload := s.sub.buf[0]
			s.sub.buf = s.sub.buf[1:]
			gap := s.sub.dropped - s.sub.reported
			s.sub.reported = s.sub.dropped
			s.sub.mu.Unlock()
			return Envelope[T]{Payload: payload, Gap: gap}, true
		}
		s.sub.mu.Unlock()

		select {
		case <-s.sub.notify:
		case <-ctx.Done():
			var zero Envelope[T]
			return zero, false
		}
	}
}

// Publish broadcasts payload to every current subscriber. It never
// blocks: a subscriber whose queue is full has its oldest event
// dropped to make room (spec §4.3). Publishing with zero subscribers
// succeeds but logs a warning, consistent with "no buffering of past
// events."
func (b *Bus[T]) Publish(payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.subs) == 0 {
		if b.log != nil {
			b.log.Warn("event published with no subscribers")
		}
		return
	}

	for _, sub := range b.subs {
		if sub.deliver(payload) && b.onDrop != nil {
			b.onDrop()
		}
	}
}

// deliver enqueues payload, evicting the oldest queued event first if
// the subscriber's queue is already full. It reports whether an
// eviction happened.
func (s *subscriber[T]) deliver(payload T) bool {
	s.mu.Lock()
	dropped := false
	if len(s.buf) >= QueueCapacity {
		s.buf = s.buf[1:]
		s.dropped++
		dropped = true
	}
	s.buf = append(s.buf, payload)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}
