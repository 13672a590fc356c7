package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	mu       sync.Mutex
	requests []Request
	reply    string
	limit    RateLimit
	err      error
}

func (s *stubCompleter) Complete(_ context.Context, req Request) (Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return Completion{}, s.err
	}
	text := s.reply
	if text == "" {
		text = "echo: " + req.Prompt
	}
	return Completion{Text: text, RateLimit: s.limit}, nil
}

func (s *stubCompleter) last() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newAssistant(t *testing.T, cfg Config, c Completer) (*Assistant, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	a, err := New(cfg, c, clock)
	require.NoError(t, err)
	return a, clock
}

func TestNew_RejectsBadCatalogue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultModel = "gpt"
	_, err := New(cfg, &stubCompleter{}, nil)
	assert.ErrorIs(t, err, ErrUnknownModel)

	cfg = DefaultConfig()
	cfg.DefaultPersona = "pirate"
	_, err = New(cfg, &stubCompleter{}, nil)
	assert.ErrorIs(t, err, ErrUnknownPersona)

	cfg = DefaultConfig()
	cfg.MaxHistory = 0
	_, err = New(cfg, &stubCompleter{}, nil)
	assert.Error(t, err)
}

func TestAsk_BuildsRequestAndRecordsHistory(t *testing.T) {
	stub := &stubCompleter{limit: RateLimit{RemainingTokens: "5000", RemainingRequests: "99"}}
	a, _ := newAssistant(t, DefaultConfig(), stub)

	reply, err := a.Ask(context.Background(), "u1", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", reply.Text)
	assert.Equal(t, "llama-3.3-70b-versatile", reply.ModelName)
	assert.Equal(t, "default", reply.Persona)
	assert.Equal(t, "5000", reply.RateLimit.RemainingTokens)

	req := stub.last()
	assert.Equal(t, "hello", req.Prompt)
	assert.Empty(t, req.History)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 2048, req.MaxTokens)
	assert.Contains(t, req.System, "helpful")

	_, err = a.Ask(context.Background(), "u1", "again")
	require.NoError(t, err)
	req = stub.last()
	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "echo: hello"},
	}, req.History)
	assert.Equal(t, 4, a.HistoryLen("u1"))
	assert.Equal(t, 0, a.HistoryLen("u2"))
}

func TestAsk_HistoryCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistory = 4
	a, _ := newAssistant(t, cfg, &stubCompleter{})

	for _, p := range []string{"one", "two", "three"} {
		_, err := a.Ask(context.Background(), "u1", p)
		require.NoError(t, err)
	}
	h, _ := a.histories.Get("u1")
	require.Len(t, h.turns, 4)
	assert.Equal(t, "two", h.turns[0].Content)
	assert.Equal(t, "echo: three", h.turns[3].Content)
}

func TestAsk_Errors(t *testing.T) {
	stub := &stubCompleter{err: errors.New("503 upstream")}
	a, _ := newAssistant(t, DefaultConfig(), stub)

	_, err := a.Ask(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = a.Ask(context.Background(), "u1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503 upstream")
	assert.Equal(t, 0, a.HistoryLen("u1"), "failed completions leave no history")
}

func TestAsk_Truncates(t *testing.T) {
	stub := &stubCompleter{reply: strings.Repeat("é", MaxReplyLength+10)}
	a, _ := newAssistant(t, DefaultConfig(), stub)

	reply, err := a.Ask(context.Background(), "u1", "long please")
	require.NoError(t, err)
	assert.True(t, reply.Truncated)
	assert.Len(t, []rune(reply.Text), MaxReplyLength)
	assert.True(t, strings.HasSuffix(reply.Text, "..."))
}

func TestContinue_SeedsPriorTurn(t *testing.T) {
	stub := &stubCompleter{}
	a, _ := newAssistant(t, DefaultConfig(), stub)

	_, err := a.Continue(context.Background(), "u1", "  The answer is 42.  ", "why?")
	require.NoError(t, err)
	assert.Equal(t, []Turn{{Role: RoleAssistant, Content: "The answer is 42."}}, stub.last().History)
	assert.Equal(t, "why?", stub.last().Prompt)
	assert.Equal(t, 2, a.HistoryLen("u1"), "only the prompt and answer are recorded")
}

func TestContinue_PriorAlreadyInHistory(t *testing.T) {
	stub := &stubCompleter{}
	a, _ := newAssistant(t, DefaultConfig(), stub)

	_, err := a.Ask(context.Background(), "u1", "hi")
	require.NoError(t, err)
	_, err = a.Continue(context.Background(), "u1", "echo: hi", "and?")
	require.NoError(t, err)

	assert.Len(t, stub.last().History, 2, "the latest answer is not repeated")
}

func TestContinue_EmptyPriorIsAsk(t *testing.T) {
	stub := &stubCompleter{}
	a, _ := newAssistant(t, DefaultConfig(), stub)

	_, err := a.Continue(context.Background(), "u1", "", "hi")
	require.NoError(t, err)
	assert.Empty(t, stub.last().History)

	_, err = a.Continue(context.Background(), "u1", "earlier", " ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
		cut   bool
	}{
		{"short", 10, "short", false},
		{"exactly10!", 10, "exactly10!", false},
		{"this is too long", 10, "this is...", true},
		{"abcdef", 3, "abc", true},
	}
	for _, tt := range tests {
		got, cut := Truncate(tt.in, tt.limit)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.cut, cut, tt.in)
	}
}

func TestClear(t *testing.T) {
	a, _ := newAssistant(t, DefaultConfig(), &stubCompleter{})
	_, err := a.Ask(context.Background(), "u1", "hi")
	require.NoError(t, err)

	assert.Equal(t, 2, a.Clear("u1"))
	assert.Equal(t, 0, a.Clear("u1"))
	assert.Equal(t, 0, a.HistoryLen("u1"))
}

func TestSetModelAndPersona(t *testing.T) {
	stub := &stubCompleter{}
	a, _ := newAssistant(t, DefaultConfig(), stub)

	name, err := a.SetModel("GEMMA")
	require.NoError(t, err)
	assert.Equal(t, "gemma2-9b-it", name)
	require.NoError(t, a.SetPersona("teacher"))

	_, err = a.SetModel("gpt-4")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.ErrorIs(t, a.SetPersona("pirate"), ErrUnknownPersona)

	_, err = a.Ask(context.Background(), "u1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "gemma2-9b-it", stub.last().Model)
	assert.Contains(t, stub.last().System, "patient teacher")

	models := a.Models()
	require.Len(t, models, 4)
	assert.Equal(t, "gemma", models[0].Key)
	assert.True(t, models[0].Selected)

	for _, p := range a.Personas() {
		assert.Equal(t, p.Key == "teacher", p.Selected, p.Key)
	}
}

func TestStatus(t *testing.T) {
	stub := &stubCompleter{limit: RateLimit{RemainingTokens: "10", RemainingRequests: "2"}}
	a, _ := newAssistant(t, DefaultConfig(), stub)
	_, err := a.Ask(context.Background(), "u1", "hi")
	require.NoError(t, err)

	st := a.Status("u1")
	assert.Equal(t, "llama", st.ModelKey)
	assert.Equal(t, "default", st.Persona)
	assert.Equal(t, 1, st.ActiveUsers)
	assert.Equal(t, 2, st.HistoryLen)
	assert.Equal(t, 20, st.MaxHistory)
	assert.Equal(t, "2", st.RateLimit.RemainingRequests)
}

func TestPruneIdle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryTTL = time.Hour
	a, clock := newAssistant(t, cfg, &stubCompleter{})

	_, err := a.Ask(context.Background(), "old", "hi")
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)
	_, err = a.Ask(context.Background(), "fresh", "hi")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 1, a.PruneIdle())
	assert.Equal(t, 0, a.HistoryLen("old"))
	assert.Equal(t, 2, a.HistoryLen("fresh"))

	cfg.HistoryTTL = 0
	keep, _ := newAssistant(t, cfg, &stubCompleter{})
	assert.Equal(t, 0, keep.PruneIdle())
}
