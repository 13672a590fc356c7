package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/roach88/guildkeeper/internal/assistant"
	"github.com/roach88/guildkeeper/internal/chat"
	"github.com/roach88/guildkeeper/internal/command"
	"github.com/roach88/guildkeeper/internal/counting"
	"github.com/roach88/guildkeeper/internal/ids"
	"github.com/roach88/guildkeeper/internal/journal"
	"github.com/roach88/guildkeeper/internal/leveling"
	"github.com/roach88/guildkeeper/internal/minigame"
	"github.com/roach88/guildkeeper/internal/presence"
	"github.com/roach88/guildkeeper/internal/random"
	"github.com/roach88/guildkeeper/internal/timed"
	"github.com/roach88/guildkeeper/internal/timer"
)

// Recorder appends outcomes to the journal. Implemented by *journal.Journal.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Settings are the behavioural knobs, usually built from config.Config.
type Settings struct {
	Prefix        string
	Leveling      leveling.Config
	CountingAward int64
	Limits        timed.Limits
	Games         minigame.Config
	Bank          minigame.Bank
	Assistant     assistant.Config
	// ChatChannels are channels where plain messages go to the assistant.
	ChatChannels []string
	Admins       []string
	// Housekeeping is the interval of the background job. Zero disables it.
	Housekeeping time.Duration
}

// DefaultSettings returns the built-in behaviour.
func DefaultSettings() Settings {
	return Settings{
		Prefix:        command.DefaultPrefix,
		Leveling:      leveling.DefaultConfig(),
		CountingAward: counting.DefaultAward,
		Limits:        timed.DefaultLimits(),
		Games:         minigame.DefaultConfig(),
		Bank:          minigame.DefaultBank(),
		Assistant:     assistant.DefaultConfig(),
		Housekeeping:  10 * time.Minute,
	}
}

// Deps are the engine's collaborators. Only Messenger is required.
type Deps struct {
	Messenger chat.Messenger
	// Completer enables the assistant when set.
	Completer assistant.Completer
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// IDs defaults to UUIDv7.
	IDs ids.Generator
	// Random defaults to random.Global.
	Random random.Source
	// Journal is optional.
	Journal Recorder
	// StartSeq resumes the logical clock, normally from journal.LastSeq.
	StartSeq int64
}

// Engine is the single-writer dispatcher and the owner of every component.
//
// Thread-safety model:
//   - Enqueue, Submit, Stop: safe from any goroutine
//   - Run or Drain: called from exactly one goroutine at a time
type Engine struct {
	settings  Settings
	seq       *Clock
	queue     *eventQueue
	wall      clockwork.Clock
	messenger chat.Messenger
	journal   Recorder

	timers    *timer.Service
	xp        *leveling.Tracker
	presence  *presence.Tracker
	counting  *counting.Game
	timed     *timed.Manager
	games     *minigame.Games
	assistant *assistant.Assistant
	router    *command.Router

	chatChannels map[string]bool

	// ctx is the context of the event being processed. Component sinks run
	// inside processEvent and use it for their sends.
	ctx context.Context

	bg sync.WaitGroup
}

// New wires the components. The assistant is enabled only when
// deps.Completer is set.
func New(settings Settings, deps Deps) (*Engine, error) {
	if deps.Messenger == nil {
		return nil, fmt.Errorf("engine: messenger is required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.IDs == nil {
		deps.IDs = ids.UUIDv7Generator{}
	}
	if deps.Random == nil {
		deps.Random = random.Global{}
	}

	e := &Engine{
		settings:     settings,
		seq:          NewClockAt(deps.StartSeq),
		queue:        newEventQueue(),
		wall:         deps.Clock,
		messenger:    deps.Messenger,
		journal:      deps.Journal,
		chatChannels: make(map[string]bool, len(settings.ChatChannels)),
		ctx:          context.Background(),
	}
	for _, ch := range settings.ChatChannels {
		e.chatChannels[ch] = true
	}

	e.timers = timer.New(deps.Clock, timer.WithDispatch(func(fn func()) {
		if !e.Submit(fn) {
			slog.Debug("engine stopped, scheduled task dropped")
		}
	}))

	e.xp = leveling.New(settings.Leveling, deps.Random)
	award := awarder{e}
	e.presence = presence.New()
	e.counting = counting.New(award, settings.CountingAward)
	e.timed = timed.New(e.timers, timedSink{e},
		timed.WithIDs(deps.IDs),
		timed.WithRandom(deps.Random),
		timed.WithLimits(settings.Limits),
	)
	e.games = minigame.New(settings.Games, e.timers, award,
		minigame.WithIDs(deps.IDs),
		minigame.WithRandom(deps.Random),
		minigame.WithSink(gameSink{e}),
	)

	if deps.Completer != nil {
		a, err := assistant.New(settings.Assistant, deps.Completer, deps.Clock)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.assistant = a
	}

	e.router = command.New(settings.Prefix, command.Services{
		XP:        e.xp,
		Presence:  e.presence,
		Counting:  e.counting,
		Timed:     e.timed,
		Games:     e.games,
		Assistant: e.assistant,
		Bank:      settings.Bank,
		Random:    deps.Random,
		Clock:     deps.Clock,
		Admins:    settings.Admins,
	})
	return e, nil
}

// Enqueue submits an event for processing.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Submit enqueues fn to run on the dispatcher.
func (e *Engine) Submit(fn func()) bool {
	return e.queue.Enqueue(Event{Type: EventTypeTask, Task: fn})
}

// QueueLen returns the number of events waiting.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the single-writer event loop and the housekeeping job.
// Blocks until ctx is cancelled or Stop is called, then waits for
// in-flight LLM calls.
//
// ERROR HANDLING: a failing event is logged with its seq and channel and
// processing continues with the next event.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "seq", e.seq.Current())

	sched, err := e.startHousekeeping()
	if err != nil {
		return err
	}
	defer func() {
		if sched != nil {
			if err := sched.Shutdown(); err != nil {
				slog.Error("housekeeping shutdown failed", "error", err)
			}
		}
		e.timers.Stop()
		e.bg.Wait()
	}()

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Close, so a closed and
			// empty queue ends the loop here.
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes queued events on the caller's goroutine until the queue
// is empty and no LLM call is in flight. Used by tests and the harness
// instead of Run. Returns the number of events processed.
func (e *Engine) Drain(ctx context.Context) int {
	n := 0
	for {
		for {
			ev, ok := e.queue.TryDequeue()
			if !ok {
				break
			}
			e.process(ctx, ev)
			n++
		}
		// Background calls were started from process on this goroutine,
		// so Wait cannot race with Add here.
		e.bg.Wait()
		if e.queue.Len() == 0 {
			return n
		}
	}
}

// Stop closes the queue. Run returns once the queued events are done.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Timers returns the timer service.
func (e *Engine) Timers() *timer.Service { return e.timers }

// XP returns the leveling tracker.
func (e *Engine) XP() *leveling.Tracker { return e.xp }

// Presence returns the AFK tracker.
func (e *Engine) Presence() *presence.Tracker { return e.presence }

// Counting returns the counting game.
func (e *Engine) Counting() *counting.Game { return e.counting }

// Timed returns the giveaway, reminder and timer manager.
func (e *Engine) Timed() *timed.Manager { return e.timed }

// Games returns the mini-game engine.
func (e *Engine) Games() *minigame.Games { return e.games }

// Assistant returns the assistant, or nil when disabled.
func (e *Engine) Assistant() *assistant.Assistant { return e.assistant }

// Seq returns the last issued logical seq.
func (e *Engine) Seq() int64 { return e.seq.Current() }

// process runs one event with panic containment.
func (e *Engine) process(ctx context.Context, ev Event) {
	ev.Seq = e.seq.Next()
	e.ctx = ctx

	defer func() {
		if r := recover(); r != nil {
			logEventError(ev, newPanicError(ev.Seq, ev, r))
		}
	}()

	if err := e.processEvent(ctx, ev); err != nil {
		logEventError(ev, err)
	}
}

// processEvent routes an event to its handler.
// Called only from the dispatcher goroutine.
func (e *Engine) processEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventTypeMessage:
		return e.handleMessage(ctx, ev)
	case EventTypeInteraction:
		return e.handleInteraction(ctx, ev)
	case EventTypeTask:
		if ev.Task == nil {
			return &RuntimeError{Code: ErrCodeUnknownEvent, Message: "task event without a task", Seq: ev.Seq}
		}
		ev.Task()
		return nil
	default:
		return &RuntimeError{
			Code:    ErrCodeUnknownEvent,
			Message: fmt.Sprintf("unknown event type %d", ev.Type),
			Seq:     ev.Seq,
		}
	}
}

func logEventError(ev Event, err error) {
	slog.Error("event processing failed",
		"seq", ev.Seq,
		"type", ev.Type,
		"author", ev.Inbound.AuthorID,
		"channel", ev.Inbound.ChannelID,
		"message_id", ev.Inbound.ID,
		"error", err,
	)
}
