package engine

import (
	"sync"

	"github.com/roach88/guildkeeper/internal/chat"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeMessage is an inbound chat message.
	EventTypeMessage EventType = iota + 1
	// EventTypeInteraction is an inbound component interaction.
	EventTypeInteraction
	// EventTypeTask is a closure submitted by a timer, the housekeeping
	// job or a finished background call.
	EventTypeTask
)

func (t EventType) String() string {
	switch t {
	case EventTypeMessage:
		return "message"
	case EventTypeInteraction:
		return "interaction"
	case EventTypeTask:
		return "task"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the dispatcher.
type Event struct {
	Type    EventType
	Inbound chat.Inbound
	Task    func()
	// Seq is stamped by the engine when the event is processed.
	Seq int64
}

// InboundEvent wraps an inbound platform event.
func InboundEvent(in chat.Inbound) Event {
	if in.Kind == chat.KindInteraction {
		return Event{Type: EventTypeInteraction, Inbound: in}
	}
	return Event{Type: EventTypeMessage, Inbound: in}
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so timer callbacks and gateway handlers never
// block on a busy dispatcher. The signal channel lets the Run loop wait
// with a context.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]

	// Release the closure and inbound payload for GC.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting events and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
