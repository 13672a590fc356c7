package minigame

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/guildkeeper/internal/ids"
	"github.com/roach88/guildkeeper/internal/keyed"
	"github.com/roach88/guildkeeper/internal/random"
	"github.com/roach88/guildkeeper/internal/timer"
)

// Option count bounds for trivia. Five matches one row of buttons.
const (
	MinOptions = 2
	MaxOptions = 5
)

// Config holds round lifetimes and rewards.
type Config struct {
	TriviaTimeout   time.Duration
	ScrambleTimeout time.Duration
	TriviaAward     int64
	ScrambleAward   int64
}

// DefaultConfig: 30s rounds, 25 XP for trivia, 20 XP for scramble.
func DefaultConfig() Config {
	return Config{
		TriviaTimeout:   30 * time.Second,
		ScrambleTimeout: 30 * time.Second,
		TriviaAward:     25,
		ScrambleAward:   20,
	}
}

// Games owns every TriviaRound and ScrambleRound.
type Games struct {
	cfg     Config
	timers  *timer.Service
	awarder Awarder
	sink    Sink
	ids     ids.Generator
	rng     random.Source

	rounds *keyed.Store[string, round]
	// scrambles indexes the active scramble per (channel, owner).
	scrambles *keyed.Store[string, string]
}

// Option configures Games.
type Option func(*Games)

// WithIDs sets the round id generator. Default: UUIDv7.
func WithIDs(g ids.Generator) Option {
	return func(gm *Games) { gm.ids = g }
}

// WithRandom sets the scramble source. Default: random.Global.
func WithRandom(src random.Source) Option {
	return func(gm *Games) { gm.rng = src }
}

// WithSink sets the resolution observer.
func WithSink(s Sink) Option {
	return func(gm *Games) { gm.sink = s }
}

// New creates Games. awarder may be nil to disable XP.
func New(cfg Config, timers *timer.Service, awarder Awarder, opts ...Option) *Games {
	g := &Games{
		cfg:       cfg,
		timers:    timers,
		awarder:   awarder,
		sink:      nopSink{},
		ids:       ids.UUIDv7Generator{},
		rng:       random.Global{},
		rounds:    keyed.New[string, round](),
		scrambles: keyed.New[string, string](),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the configured lifetimes and rewards.
func (g *Games) Config() Config {
	return g.cfg
}

func scrambleKey(channelID, ownerID string) string {
	return channelID + "\x00" + ownerID
}

// TriviaRequest starts a trivia round.
type TriviaRequest struct {
	Question     string
	Options      []string
	CorrectIndex int
	OwnerID      string
	ChannelID    string
	// Timeout overrides Config.TriviaTimeout when positive.
	Timeout time.Duration
}

// StartTrivia validates req and opens a round.
func (g *Games) StartTrivia(req TriviaRequest) (Round, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Round{}, fmt.Errorf("%w: empty question", ErrInvalidRound)
	}
	if n := len(req.Options); n < MinOptions || n > MaxOptions {
		return Round{}, fmt.Errorf("%w: %d options, want %d-%d", ErrInvalidRound, n, MinOptions, MaxOptions)
	}
	if req.CorrectIndex < 0 || req.CorrectIndex >= len(req.Options) {
		return Round{}, fmt.Errorf("%w: correct index %d out of range", ErrInvalidRound, req.CorrectIndex)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.TriviaTimeout
	}

	r := g.newRound(KindTrivia, req.OwnerID, req.ChannelID, timeout)
	r.Prompt = req.Question
	r.Options = append([]string(nil), req.Options...)
	r.AnswerIndex = req.CorrectIndex
	r.Answer = req.Options[req.CorrectIndex]

	g.rounds.Put(r.ID, round{Round: r})
	g.arm(r.ID, timeout)

	slog.Info("round started", "kind", KindTrivia, "round", r.ID, "owner", r.OwnerID)
	return r, nil
}

// ScrambleRequest starts a scramble round.
type ScrambleRequest struct {
	Word      string
	OwnerID   string
	ChannelID string
	// Timeout overrides Config.ScrambleTimeout when positive.
	Timeout time.Duration
}

// StartScramble opens a round for req.Word. The owner may have one active
// scramble per channel.
func (g *Games) StartScramble(req ScrambleRequest) (Round, error) {
	word := strings.ToLower(strings.TrimSpace(req.Word))
	scrambled, err := Scramble(word, g.rng)
	if err != nil {
		return Round{}, err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.ScrambleTimeout
	}

	r := g.newRound(KindScramble, req.OwnerID, req.ChannelID, timeout)
	r.Prompt = scrambled
	r.Answer = word

	g.rounds.Put(r.ID, round{Round: r})

	busy := false
	g.scrambles.Update(scrambleKey(req.ChannelID, req.OwnerID), func(cur string, ok bool) (string, bool) {
		if ok {
			busy = true
			return cur, true
		}
		return r.ID, true
	})
	if busy {
		g.rounds.Delete(r.ID)
		return Round{}, ErrRoundActive
	}
	g.arm(r.ID, timeout)

	slog.Info("round started", "kind", KindScramble, "round", r.ID, "owner", r.OwnerID)
	return r, nil
}

func (g *Games) newRound(kind Kind, ownerID, channelID string, timeout time.Duration) Round {
	now := g.timers.Clock().Now()
	return Round{
		ID:        g.ids.Generate(),
		Kind:      kind,
		OwnerID:   ownerID,
		ChannelID: channelID,
		StartedAt: now,
		Deadline:  now.Add(timeout),
		State:     Pending,
	}
}

func (g *Games) arm(id string, timeout time.Duration) {
	tok := g.timers.Schedule(timeout, func() { g.expire(id) })
	g.rounds.Update(id, func(cur round, ok bool) (round, bool) {
		if ok {
			cur.token = tok
		}
		return cur, ok
	})
}

// take is the resolution latch: the caller that removes the round owns it.
func (g *Games) take(id string) (round, bool) {
	r, ok := g.rounds.LoadAndDelete(id)
	if !ok {
		return round{}, false
	}
	if r.Kind == KindScramble {
		g.scrambles.Update(scrambleKey(r.ChannelID, r.OwnerID), func(cur string, ok bool) (string, bool) {
			return cur, ok && cur != id
		})
	}
	return r, true
}

func (g *Games) expire(id string) {
	r, ok := g.take(id)
	if !ok {
		return
	}
	r.State = Expired
	slog.Info("round expired", "kind", r.Kind, "round", id, "owner", r.OwnerID)
	g.sink.RoundResolved(Result{Status: StatusResolved, Round: r.Round})
}

func (g *Games) award(userID string, amount int64, res *Result) {
	if g.awarder != nil && amount > 0 {
		res.Progress = g.awarder.RecordActivity(userID, amount)
	}
}

// Answer resolves a trivia round with the owner's choice (0-based).
// Non-owners are rejected without resolving the round.
func (g *Games) Answer(roundID, userID string, choice int) (Result, error) {
	snap, ok := g.Round(roundID)
	if !ok || snap.Kind != KindTrivia {
		return Result{Status: StatusStale}, nil
	}
	if snap.OwnerID != userID {
		return Result{Status: StatusNotOwner, Round: snap}, nil
	}
	if choice < 0 || choice >= len(snap.Options) {
		return Result{}, fmt.Errorf("%w: option %d of %d", ErrInvalidChoice, choice+1, len(snap.Options))
	}

	r, ok := g.take(roundID)
	if !ok {
		return Result{Status: StatusStale}, nil
	}
	g.timers.Cancel(r.token)

	res := Result{Status: StatusResolved, Guess: r.Options[choice]}
	if choice == r.AnswerIndex {
		r.State = Correct
		g.award(userID, g.cfg.TriviaAward, &res)
	} else {
		r.State = Incorrect
	}
	res.Round = r.Round

	slog.Info("round resolved", "kind", KindTrivia, "round", roundID, "state", r.State)
	g.sink.RoundResolved(res)
	return res, nil
}

// Guess offers a chat message to the owner's active scramble in channelID.
// It reports false when the message is not part of a round, so the caller
// can continue processing it normally.
func (g *Games) Guess(channelID, userID, content string) (Result, bool) {
	id, ok := g.scrambles.Get(scrambleKey(channelID, userID))
	if !ok {
		return Result{}, false
	}
	r, ok := g.take(id)
	if !ok {
		return Result{}, false
	}
	g.timers.Cancel(r.token)

	res := Result{Status: StatusResolved, Guess: strings.TrimSpace(content)}
	if Matches(content, r.Answer) {
		r.State = Correct
		g.award(userID, g.cfg.ScrambleAward, &res)
	} else {
		r.State = Incorrect
	}
	res.Round = r.Round

	slog.Info("round resolved", "kind", KindScramble, "round", id, "state", r.State)
	g.sink.RoundResolved(res)
	return res, true
}

// Round returns a snapshot of a pending round.
func (g *Games) Round(id string) (Round, bool) {
	r, ok := g.rounds.Get(id)
	if !ok {
		return Round{}, false
	}
	snap := r.Round
	snap.Options = append([]string(nil), r.Options...)
	return snap, true
}

// Active returns the number of pending rounds.
func (g *Games) Active() int {
	return g.rounds.Len()
}
