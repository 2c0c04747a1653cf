package bus

import (
	"context"
	"errors"
	"sync"

	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Event is the unit passed through the in-memory bus: a header plus the
// decoded payload for the header's type.
type Event struct {
	Header  schema.EventHeader
	Payload any
}

// Queue is a bounded event queue. Producers choose between dropping on a
// full queue (TryPublish) and suspending until there is room (Publish).
//
// The event channel itself is never closed: producers race Close, and a
// send on a closed channel panics. Close flips a done latch instead, and
// both sides select on it.
type Queue struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish enqueues an event, suspending until the queue has room, the
// queue closes, or ctx is done. Messages that must not be dropped go
// through here.
func (q *Queue) Publish(ctx context.Context, e Event) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- e:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get blocks until the next event arrives, the queue closes, or ctx is
// done. Events buffered before the close still drain.
func (q *Queue) Get(ctx context.Context) (Event, error) {
	select {
	case e := <-q.ch:
		return e, nil
	default:
	}
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case e := <-q.ch:
		return e, nil
	case <-q.done:
		select {
		case e := <-q.ch:
			return e, nil
		default:
			return Event{}, ErrQueueClosed
		}
	}
}

// Close stops the queue from accepting new events. Idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Run consumes events until the context is done or the queue is closed
// and drained.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		e, err := q.Get(ctx)
		if err != nil {
			return
		}
		handler(e)
	}
}
