// Package assistant is the conversational side of the bot: per-user chat
// history, a process-wide model and persona selection, and the call out to
// an LLM Completer.
//
// Completions run on the caller's goroutine, which is never the engine
// loop. History is appended only after the completion returns, under the
// user's key lock, so two concurrent questions from one user never lose a
// turn.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/guildkeeper/internal/keyed"
)

var (
	// ErrUnknownModel is returned when selecting a model key that is not in
	// the catalogue.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownPersona is returned when selecting a persona key that is not
	// in the catalogue.
	ErrUnknownPersona = errors.New("unknown persona")
	// ErrEmptyPrompt is returned for a blank question.
	ErrEmptyPrompt = errors.New("empty prompt")
)

// MaxReplyLength is the longest reply the platform accepts in one message.
const MaxReplyLength = 2000

// Role is the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// Request is everything a Completer needs for one call.
type Request struct {
	Model       string
	System      string
	History     []Turn
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// RateLimit carries the provider's remaining-quota headers verbatim.
// Empty fields mean the provider did not send them.
type RateLimit struct {
	RemainingTokens   string
	RemainingRequests string
}

// Completion is the Completer's answer.
type Completion struct {
	Text      string
	RateLimit RateLimit
}

// Completer produces a completion. Implemented by llm.Client.
type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Config is the catalogue and the generation settings.
type Config struct {
	// Models maps a short key to the provider model name.
	Models map[string]string
	// Personas maps a key to its system prompt.
	Personas       map[string]string
	DefaultModel   string
	DefaultPersona string
	MaxHistory     int
	Temperature    float64
	MaxTokens      int
	// HistoryTTL is how long an idle history is kept. Zero keeps forever.
	HistoryTTL time.Duration
}

// DefaultConfig returns the Groq catalogue.
func DefaultConfig() Config {
	return Config{
		Models: map[string]string{
			"llama":       "llama-3.3-70b-versatile",
			"mixtral":     "mixtral-8x7b-32768",
			"gemma":       "gemma2-9b-it",
			"llama-small": "llama-3.1-8b-instant",
		},
		Personas: map[string]string{
			"default":    "You are a helpful, friendly assistant. Answer clearly and informatively.",
			"programmer": "You are an expert programmer helping with code. Give clean examples and technical explanations.",
			"creative":   "You are a creative writer. Help with creative ideas, stories and engaging content.",
			"teacher":    "You are a patient teacher. Explain concepts in a way beginners can follow.",
		},
		DefaultModel:   "llama",
		DefaultPersona: "default",
		MaxHistory:     20,
		Temperature:    0.7,
		MaxTokens:      2048,
		HistoryTTL:     24 * time.Hour,
	}
}

// Validate checks the catalogue is self-consistent.
func (c Config) Validate() error {
	if _, ok := c.Models[c.DefaultModel]; !ok {
		return fmt.Errorf("%w: default %q", ErrUnknownModel, c.DefaultModel)
	}
	if _, ok := c.Personas[c.DefaultPersona]; !ok {
		return fmt.Errorf("%w: default %q", ErrUnknownPersona, c.DefaultPersona)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("max history must be positive, got %d", c.MaxHistory)
	}
	return nil
}

type history struct {
	turns    []Turn
	lastUsed time.Time
}

// Assistant holds the conversation state.
type Assistant struct {
	cfg       Config
	completer Completer
	clock     clockwork.Clock

	histories *keyed.Store[string, history]

	mu        sync.RWMutex
	model     string
	persona   string
	rateLimit RateLimit
}

// New creates an Assistant. A nil clock means the real clock.
func New(cfg Config, completer Completer, clock clockwork.Clock) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Assistant{
		cfg:       cfg,
		completer: completer,
		clock:     clock,
		histories: keyed.New[string, history](),
		model:     cfg.DefaultModel,
		persona:   cfg.DefaultPersona,
	}, nil
}

// Reply is the answer to one Ask.
type Reply struct {
	Text      string
	Truncated bool
	ModelName string
	Persona   string
	RateLimit RateLimit
}

// Ask sends prompt with userID's history and records both turns.
func (a *Assistant) Ask(ctx context.Context, userID, prompt string) (Reply, error) {
	return a.ask(ctx, userID, "", prompt)
}

// Continue is Ask for a reply to one of the assistant's own messages. prior
// is the text of that message and is sent as the assistant turn preceding
// prompt unless it is already the latest turn in the history. Only prompt
// and the answer are recorded.
func (a *Assistant) Continue(ctx context.Context, userID, prior, prompt string) (Reply, error) {
	return a.ask(ctx, userID, strings.TrimSpace(prior), prompt)
}

func (a *Assistant) ask(ctx context.Context, userID, prior, prompt string) (Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Reply{}, ErrEmptyPrompt
	}

	a.mu.RLock()
	modelKey, personaKey := a.model, a.persona
	a.mu.RUnlock()

	h, _ := a.histories.Get(userID)
	req := Request{
		Model:       a.cfg.Models[modelKey],
		System:      a.cfg.Personas[personaKey],
		History:     append([]Turn(nil), h.turns...),
		Prompt:      prompt,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	if prior != "" && !endsWith(h.turns, prior) {
		req.History = append(req.History, Turn{Role: RoleAssistant, Content: prior})
	}

	start := a.clock.Now()
	c, err := a.completer.Complete(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("complete: %w", err)
	}
	slog.Debug("completion received",
		"user", userID,
		"model", req.Model,
		"duration", a.clock.Since(start),
	)

	now := a.clock.Now()
	a.histories.Update(userID, func(cur history, _ bool) (history, bool) {
		cur.turns = append(cur.turns,
			Turn{Role: RoleUser, Content: prompt},
			Turn{Role: RoleAssistant, Content: c.Text},
		)
		if over := len(cur.turns) - a.cfg.MaxHistory; over > 0 {
			cur.turns = append([]Turn(nil), cur.turns[over:]...)
		}
		cur.lastUsed = now
		return cur, true
	})

	a.mu.Lock()
	a.rateLimit = c.RateLimit
	a.mu.Unlock()

	text, truncated := Truncate(c.Text, MaxReplyLength)
	return Reply{
		Text:      text,
		Truncated: truncated,
		ModelName: req.Model,
		Persona:   personaKey,
		RateLimit: c.RateLimit,
	}, nil
}

// endsWith reports whether the last turn is the assistant saying text, as
// posted (possibly truncated).
func endsWith(turns []Turn, text string) bool {
	if len(turns) == 0 {
		return false
	}
	last := turns[len(turns)-1]
	if last.Role != RoleAssistant {
		return false
	}
	posted, _ := Truncate(last.Content, MaxReplyLength)
	return last.Content == text || posted == text
}

// Truncate cuts s to at most limit runes, ending in "..." when cut.
func Truncate(s string, limit int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	if limit <= 3 {
		return string(runes[:limit]), true
	}
	return string(runes[:limit-3]) + "...", true
}

// Clear forgets userID's history and returns how many turns were dropped.
func (a *Assistant) Clear(userID string) int {
	h, ok := a.histories.LoadAndDelete(userID)
	if !ok {
		return 0
	}
	return len(h.turns)
}

// HistoryLen returns the number of stored turns for userID.
func (a *Assistant) HistoryLen(userID string) int {
	h, _ := a.histories.Get(userID)
	return len(h.turns)
}

// PruneIdle drops histories unused for longer than the configured TTL.
func (a *Assistant) PruneIdle() int {
	if a.cfg.HistoryTTL <= 0 {
		return 0
	}
	cutoff := a.clock.Now().Add(-a.cfg.HistoryTTL)
	pruned := 0
	for _, e := range a.histories.Snapshot() {
		a.histories.Update(e.Key, func(cur history, ok bool) (history, bool) {
			if ok && cur.lastUsed.Before(cutoff) {
				pruned++
				return cur, false
			}
			return cur, ok
		})
	}
	return pruned
}

// Option is one catalogue entry for listings.
type Option struct {
	Key      string
	Value    string
	Selected bool
}

func listing(m map[string]string, selected string) []Option {
	out := make([]Option, 0, len(m))
	for k, v := range m {
		out = append(out, Option{Key: k, Value: v, Selected: k == selected})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Models lists the model catalogue, sorted by key.
func (a *Assistant) Models() []Option {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return listing(a.cfg.Models, a.model)
}

// Personas lists the persona catalogue, sorted by key.
func (a *Assistant) Personas() []Option {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return listing(a.cfg.Personas, a.persona)
}

// SetModel switches the process-wide model. Keys are case-insensitive.
func (a *Assistant) SetModel(key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	name, ok := a.cfg.Models[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	a.mu.Lock()
	a.model = key
	a.mu.Unlock()
	slog.Info("model switched", "model", key, "name", name)
	return name, nil
}

// SetPersona switches the process-wide persona. Keys are case-insensitive.
func (a *Assistant) SetPersona(key string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if _, ok := a.cfg.Personas[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPersona, key)
	}
	a.mu.Lock()
	a.persona = key
	a.mu.Unlock()
	slog.Info("persona switched", "persona", key)
	return nil
}

// Status is the snapshot shown by the status command.
type Status struct {
	ModelKey    string
	ModelName   string
	Persona     string
	ActiveUsers int
	HistoryLen  int
	MaxHistory  int
	RateLimit   RateLimit
}

// Status reports the current selection and userID's history size.
func (a *Assistant) Status(userID string) Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Status{
		ModelKey:    a.model,
		ModelName:   a.cfg.Models[a.model],
		Persona:     a.persona,
		ActiveUsers: a.histories.Len(),
		HistoryLen:  a.HistoryLen(userID),
		MaxHistory:  a.cfg.MaxHistory,
		RateLimit:   a.rateLimit,
	}
}
