// Package timer is the clock/timer service: one-shot delayed callbacks with
// race-safe cancellation.
//
// Scheduling never blocks the caller. At or after the delay the callback is
// handed to the configured dispatch function (by default it runs inline on
// the timer goroutine; the engine installs a dispatcher that enqueues it on
// the single-writer event loop).
//
// Each task moves pending -> firing -> fired, or pending -> cancelled. Both
// transitions out of pending are a compare-and-swap, so a callback that has
// begun firing can no longer be cancelled and a cancelled task never fires.
package timer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Token identifies a scheduled task. Zero is never issued.
type Token uint64

const (
	statePending int32 = iota
	stateFiring
	stateFired
	stateCancelled
)

type task struct {
	token Token
	due   time.Time
	timer clockwork.Timer // guarded by Service.mu
	state atomic.Int32
}

// Service schedules callbacks against a clockwork.Clock.
type Service struct {
	clock    clockwork.Clock
	dispatch func(func())

	mu      sync.Mutex
	next    Token
	pending map[Token]*task
	stopped bool
}

// Option configures a Service.
type Option func(*Service)

// WithDispatch routes fired callbacks through d instead of running them on
// the timer goroutine. d must not block for long; the engine's Submit only
// enqueues.
func WithDispatch(d func(func())) Option {
	return func(s *Service) {
		s.dispatch = d
	}
}

// New creates a Service. A nil clock means the real wall clock.
func New(clock clockwork.Clock, opts ...Option) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Service{
		clock:    clock,
		dispatch: func(fn func()) { fn() },
		pending:  make(map[Token]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the clock the service schedules against.
func (s *Service) Clock() clockwork.Clock {
	return s.clock
}

// Schedule runs fn once after delay. Negative delays are treated as zero.
// After Stop the returned token is valid but never fires.
func (s *Service) Schedule(delay time.Duration, fn func()) Token {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	s.next++
	t := &task{token: s.next, due: s.clock.Now().Add(delay)}
	if s.stopped {
		s.mu.Unlock()
		slog.Debug("timer service stopped, task dropped", "token", t.token)
		return t.token
	}
	s.pending[t.token] = t
	s.mu.Unlock()

	// AfterFunc is called without holding mu so a zero delay that fires
	// immediately cannot deadlock against fire.
	tm := s.clock.AfterFunc(delay, func() { s.fire(t, fn) })

	s.mu.Lock()
	t.timer = tm
	s.mu.Unlock()
	if t.state.Load() == stateCancelled {
		tm.Stop()
	}

	slog.Debug("task scheduled", "token", t.token, "delay", delay)
	return t.token
}

func (s *Service) fire(t *task, fn func()) {
	if !t.state.CompareAndSwap(statePending, stateFiring) {
		return
	}

	s.dispatch(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("scheduled callback panicked", "token", t.token, "panic", r)
			}
		}()
		fn()
	})

	s.mu.Lock()
	delete(s.pending, t.token)
	s.mu.Unlock()
	t.state.Store(stateFired)
}

// Cancel prevents a pending task from firing. It returns false if the token
// is unknown, already fired, already firing, or already cancelled.
func (s *Service) Cancel(tok Token) bool {
	s.mu.Lock()
	t, ok := s.pending[tok]
	s.mu.Unlock()
	if !ok {
		return false
	}

	if !t.state.CompareAndSwap(statePending, stateCancelled) {
		return false
	}

	s.mu.Lock()
	delete(s.pending, tok)
	tm := t.timer
	s.mu.Unlock()

	if tm != nil {
		tm.Stop()
	}
	slog.Debug("task cancelled", "token", tok)
	return true
}

// Due returns when a pending task is scheduled to fire.
func (s *Service) Due(tok Token) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[tok]
	if !ok {
		return time.Time{}, false
	}
	return t.due, true
}

// Pending returns the number of tasks that have neither fired nor been
// cancelled.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Settle blocks until every task whose due time has passed on the service
// clock has been handed to the dispatcher. Used with a fake clock after
// Advance, where timer callbacks run on their own goroutines.
func (s *Service) Settle(ctx context.Context) error {
	for {
		if !s.hasDue() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (s *Service) hasDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for _, t := range s.pending {
		if !t.due.After(now) {
			return true
		}
	}
	return false
}

// Stop cancels every pending task. Tasks scheduled afterwards never fire.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	tokens := make([]Token, 0, len(s.pending))
	for tok := range s.pending {
		tokens = append(tokens, tok)
	}
	s.mu.Unlock()

	for _, tok := range tokens {
		s.Cancel(tok)
	}
}
