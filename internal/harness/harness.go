package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/roach88/guildkeeper/internal/chat"
	"github.com/roach88/guildkeeper/internal/config"
	"github.com/roach88/guildkeeper/internal/engine"
	"github.com/roach88/guildkeeper/internal/ids"
	"github.com/roach88/guildkeeper/internal/journal"
	"github.com/roach88/guildkeeper/internal/random"
	"github.com/roach88/guildkeeper/internal/testutil"
)

// ErrDeliveryFailed is what the harness messenger returns while a
// fail_delivery step is in effect.
var ErrDeliveryFailed = errors.New("delivery failed")

// settleTimeout bounds the wait for timer callbacks after an advance.
const settleTimeout = 5 * time.Second

// Harness runs one scenario against a real engine with a fake clock, a
// recording messenger and an in-memory journal.
type Harness struct {
	eng     *engine.Engine
	clock   *clockwork.FakeClock
	journal *journal.Journal
	logger  *slog.Logger

	mu     sync.Mutex
	step   int
	fail   bool
	result *Result
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation. Ids come
// from a sequence generator ("id-1", "id-2", ...) and every random draw
// returns scenario.Random, so traces are reproducible.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := scenarioConfig(scenario)
	if err != nil {
		return nil, err
	}

	jr, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer jr.Close()

	start := DefaultStart
	if scenario.Start != "" {
		start, _ = time.Parse(time.RFC3339, scenario.Start)
	}

	h := &Harness{
		clock:   clockwork.NewFakeClockAt(start),
		journal: jr,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:  NewResult(),
	}

	deps := engine.Deps{
		Messenger: h,
		Clock:     h.clock,
		IDs:       ids.NewSequenceGenerator("id"),
		Random:    random.Fixed(scenario.Random),
		Journal:   h,
	}
	if script := scenario.Assistant; script != nil {
		c := testutil.NewCompleter(script.Replies...)
		if script.Fail != "" {
			c.FailWith(errors.New(script.Fail))
		}
		deps.Completer = c
	}

	settings := cfg.Settings()
	// The harness drives the engine with Drain; the scheduler is not used.
	settings.Housekeeping = 0

	eng, err := engine.New(settings, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Timers().Stop()
	h.eng = eng

	ctx := context.Background()
	for i, step := range scenario.Steps {
		h.setStep(i + 1)
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		h.logger.Info("step completed", "step", i+1, "seq", eng.Seq())
	}

	for _, msg := range EvaluateAssertions(ctx, h.result, scenario.Assertions, &AssertionContext{Engine: eng, Journal: jr}) {
		h.result.AddError(msg)
	}
	h.result.State = h.snapshot()
	return h.result, nil
}

func scenarioConfig(s *Scenario) (config.Config, error) {
	if s.Config.Kind == 0 {
		return config.Default(), nil
	}
	data, err := yaml.Marshal(&s.Config)
	if err != nil {
		return config.Config{}, fmt.Errorf("encode scenario config: %w", err)
	}
	cfg, err := config.Parse(data, s.Name+".config")
	if err != nil {
		return config.Config{}, fmt.Errorf("scenario config: %w", err)
	}
	return cfg, nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	switch {
	case step.Message != nil:
		m := step.Message
		name := m.Name
		if name == "" {
			name = m.Author
		}
		var ref *chat.Reference
		if r := m.ReplyTo; r != nil {
			ref = &chat.Reference{MessageID: r.ID, FromSelf: r.Self, Content: r.Content}
		}
		h.eng.Enqueue(engine.InboundEvent(chat.Inbound{
			Kind:       chat.KindMessage,
			ID:         fmt.Sprintf("msg-%d", h.currentStep()),
			AuthorID:   m.Author,
			AuthorName: name,
			AuthorBot:  m.Bot,
			ChannelID:  m.Channel,
			Content:    m.Content,
			Mentions:   m.Mentions,
			Reference:  ref,
			Timestamp:  h.clock.Now(),
		}))
	case step.Click != nil:
		c := step.Click
		h.eng.Enqueue(engine.InboundEvent(chat.Inbound{
			Kind:      chat.KindInteraction,
			ID:        fmt.Sprintf("click-%d", h.currentStep()),
			AuthorID:  c.Author,
			ChannelID: c.Channel,
			CustomID:  c.CustomID,
			Timestamp: h.clock.Now(),
		}))
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
		sctx, cancel := context.WithTimeout(ctx, settleTimeout)
		defer cancel()
		if err := h.eng.Timers().Settle(sctx); err != nil {
			return fmt.Errorf("timers did not settle: %w", err)
		}
	case step.FailDelivery != nil:
		h.mu.Lock()
		h.fail = *step.FailDelivery
		h.mu.Unlock()
	}
	h.eng.Drain(ctx)
	return nil
}

func (h *Harness) setStep(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.step = n
}

func (h *Harness) currentStep() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.step
}

// Send implements chat.Messenger.
func (h *Harness) Send(_ context.Context, channelID string, msg chat.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev := TraceEvent{Step: h.step, Type: TraceSend, Channel: channelID, Text: testutil.Summary(msg), ReplyTo: msg.ReplyTo}
	if msg.Embed != nil && ev.Text != msg.Embed.Description {
		ev.Detail = msg.Embed.Description
	}
	for _, b := range msg.Buttons {
		ev.Buttons = append(ev.Buttons, b.CustomID)
	}
	if h.fail {
		ev.Type = TraceFailed
		h.result.Trace = append(h.result.Trace, ev)
		return ErrDeliveryFailed
	}
	h.result.Trace = append(h.result.Trace, ev)
	return nil
}

// React implements chat.Messenger.
func (h *Harness) React(_ context.Context, channelID, _ string, emoji string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		h.result.Trace = append(h.result.Trace, TraceEvent{Step: h.step, Type: TraceFailed, Channel: channelID, Emoji: emoji})
		return ErrDeliveryFailed
	}
	h.result.Trace = append(h.result.Trace, TraceEvent{Step: h.step, Type: TraceReact, Channel: channelID, Emoji: emoji})
	return nil
}

// Record implements engine.Recorder: entries go to the journal and the
// trace.
func (h *Harness) Record(ctx context.Context, e journal.Entry) error {
	h.mu.Lock()
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Step:    h.step,
		Type:    TraceJournal,
		Channel: e.ChannelID,
		Kind:    string(e.Kind),
		Subject: e.Subject,
		Seq:     e.Seq,
	})
	h.mu.Unlock()
	return h.journal.Record(ctx, e)
}

func (h *Harness) snapshot() map[string]int {
	st := h.eng.Housekeep()
	return map[string]int{
		"users":             st.Users,
		"away":              st.Away,
		"counting_channels": st.CountingChannels,
		"giveaways":         st.Giveaways,
		"pending_tasks":     st.PendingTasks,
		"active_rounds":     st.ActiveRounds,
		"timers":            st.Timers,
	}
}
