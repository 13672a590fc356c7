package minigame

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/guildkeeper/internal/ids"
	"github.com/roach88/guildkeeper/internal/leveling"
	"github.com/roach88/guildkeeper/internal/random"
	"github.com/roach88/guildkeeper/internal/timer"
)

type recordingSink struct {
	mu       sync.Mutex
	resolved []Result
}

func (s *recordingSink) RoundResolved(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, r)
}

func (s *recordingSink) Resolved() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.resolved...)
}

func (s *recordingSink) Expired() []Result {
	var out []Result
	for _, r := range s.Resolved() {
		if r.Round.State == Expired {
			out = append(out, r)
		}
	}
	return out
}

type fixture struct {
	clock  *clockwork.FakeClock
	timers *timer.Service
	xp     *leveling.Tracker
	sink   *recordingSink
	games  *Games
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	timers := timer.New(clock)
	xp := leveling.New(leveling.DefaultConfig(), nil)
	sink := &recordingSink{}
	games := New(DefaultConfig(), timers, xp,
		WithIDs(ids.NewSequenceGenerator("round")),
		WithRandom(random.NewSeeded(1, 2)),
		WithSink(sink),
	)
	return &fixture{clock: clock, timers: timers, xp: xp, sink: sink, games: games}
}

func (f *fixture) advance(t *testing.T, d time.Duration) {
	t.Helper()
	f.clock.Advance(d)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.timers.Settle(ctx))
}

func trivia(owner string) TriviaRequest {
	return TriviaRequest{
		Question:     "2+2?",
		Options:      []string{"3", "4", "5"},
		CorrectIndex: 1,
		OwnerID:      owner,
		ChannelID:    "c1",
	}
}

func TestStartTrivia_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  TriviaRequest
	}{
		{"empty question", TriviaRequest{Options: []string{"a", "b"}}},
		{"one option", TriviaRequest{Question: "q", Options: []string{"a"}}},
		{"six options", TriviaRequest{Question: "q", Options: []string{"a", "b", "c", "d", "e", "f"}}},
		{"index out of range", TriviaRequest{Question: "q", Options: []string{"a", "b"}, CorrectIndex: 2}},
		{"negative index", TriviaRequest{Question: "q", Options: []string{"a", "b"}, CorrectIndex: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.games.StartTrivia(tt.req)
			assert.ErrorIs(t, err, ErrInvalidRound)
		})
	}
	assert.Equal(t, 0, f.games.Active())
	assert.Equal(t, 0, f.timers.Pending())
}

func TestTrivia_CorrectAnswer(t *testing.T) {
	f := newFixture(t)
	r, err := f.games.StartTrivia(trivia("owner"))
	require.NoError(t, err)
	assert.Equal(t, "round-1", r.ID)
	assert.Equal(t, Pending, r.State)
	assert.Equal(t, f.clock.Now().Add(30*time.Second), r.Deadline)

	res, err := f.games.Answer(r.ID, "owner", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, Correct, res.Round.State)
	assert.Equal(t, "4", res.Guess)
	assert.Equal(t, int64(25), res.Progress.Awarded)
	assert.Equal(t, int64(25), f.xp.Rank("owner").XP)
	assert.Equal(t, 0, f.timers.Pending(), "timeout is cancelled on resolution")

	resolved := f.sink.Resolved()
	require.Len(t, resolved, 1, "answers are observed by the sink too")
	assert.Equal(t, Correct, resolved[0].Round.State)
}

func TestTrivia_WrongAnswer(t *testing.T) {
	f := newFixture(t)
	r, _ := f.games.StartTrivia(trivia("owner"))

	res, err := f.games.Answer(r.ID, "owner", 0)
	require.NoError(t, err)
	assert.Equal(t, Incorrect, res.Round.State)
	assert.Equal(t, "4", res.Round.Answer)
	assert.Equal(t, int64(0), f.xp.Rank("owner").XP)
}

func TestTrivia_NonOwnerRejected(t *testing.T) {
	f := newFixture(t)
	r, _ := f.games.StartTrivia(trivia("owner"))

	res, err := f.games.Answer(r.ID, "intruder", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusNotOwner, res.Status)

	_, ok := f.games.Round(r.ID)
	assert.True(t, ok, "non-owner answers must not resolve the round")

	res, err = f.games.Answer(r.ID, "owner", 1)
	require.NoError(t, err)
	assert.Equal(t, Correct, res.Round.State)
	assert.Equal(t, int64(0), f.xp.Rank("intruder").XP)
}

func TestTrivia_ResolvesOnce(t *testing.T) {
	f := newFixture(t)
	r, _ := f.games.StartTrivia(trivia("owner"))

	_, err := f.games.Answer(r.ID, "owner", 1)
	require.NoError(t, err)

	res, err := f.games.Answer(r.ID, "owner", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusStale, res.Status)
	assert.Equal(t, int64(25), f.xp.Rank("owner").XP, "second answer must not award again")
}

func TestTrivia_InvalidChoice(t *testing.T) {
	f := newFixture(t)
	r, _ := f.games.StartTrivia(trivia("owner"))

	_, err := f.games.Answer(r.ID, "owner", 3)
	assert.ErrorIs(t, err, ErrInvalidChoice)
	_, ok := f.games.Round(r.ID)
	assert.True(t, ok)
}

func TestTrivia_Timeout(t *testing.T) {
	f := newFixture(t)
	r, _ := f.games.StartTrivia(trivia("owner"))

	f.advance(t, 30*time.Second)

	expired := f.sink.Expired()
	require.Len(t, expired, 1)
	assert.Equal(t, Expired, expired[0].Round.State)
	assert.Equal(t, "4", expired[0].Round.Answer, "timeout reveals the correct option")
	assert.Equal(t, int64(0), f.xp.Rank("owner").XP)

	res, err := f.games.Answer(r.ID, "owner", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusStale, res.Status)
}

func TestTrivia_AnswerRacesTimeout(t *testing.T) {
	for i := 0; i < 100; i++ {
		f := newFixture(t)
		r, _ := f.games.StartTrivia(trivia("owner"))

		var answered atomic.Bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.clock.Advance(30 * time.Second)
		}()
		go func() {
			defer wg.Done()
			res, _ := f.games.Answer(r.ID, "owner", 1)
			answered.Store(res.Status == StatusResolved)
		}()
		wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, f.timers.Settle(ctx))
		cancel()

		expired := len(f.sink.Expired())
		if answered.Load() {
			require.Equal(t, 0, expired)
		} else {
			require.Equal(t, 1, expired)
		}
	}
}

func TestScramble_Correct(t *testing.T) {
	f := newFixture(t)
	r, err := f.games.StartScramble(ScrambleRequest{Word: "Gopher", OwnerID: "owner", ChannelID: "c1"})
	require.NoError(t, err)
	assert.NotEqual(t, "gopher", r.Prompt)
	assert.ElementsMatch(t, []rune("gopher"), []rune(r.Prompt))

	_, consumed := f.games.Guess("c1", "someone-else", "gopher")
	assert.False(t, consumed, "only the owner's messages resolve the round")
	_, consumed = f.games.Guess("c2", "owner", "gopher")
	assert.False(t, consumed, "only messages in the originating channel count")

	res, consumed := f.games.Guess("c1", "owner", "  GOPHER ")
	require.True(t, consumed)
	assert.Equal(t, Correct, res.Round.State)
	assert.Equal(t, int64(20), f.xp.Rank("owner").XP)

	_, consumed = f.games.Guess("c1", "owner", "gopher")
	assert.False(t, consumed, "round is gone after resolution")
}

func TestScramble_WrongGuessResolves(t *testing.T) {
	f := newFixture(t)
	_, err := f.games.StartScramble(ScrambleRequest{Word: "planet", OwnerID: "owner", ChannelID: "c1"})
	require.NoError(t, err)

	res, consumed := f.games.Guess("c1", "owner", "plante")
	require.True(t, consumed)
	assert.Equal(t, Incorrect, res.Round.State)
	assert.Equal(t, "planet", res.Round.Answer)
	assert.Equal(t, 0, f.games.Active())
}

func TestScramble_Timeout(t *testing.T) {
	f := newFixture(t)
	_, err := f.games.StartScramble(ScrambleRequest{Word: "planet", OwnerID: "owner", ChannelID: "c1", Timeout: 10 * time.Second})
	require.NoError(t, err)

	f.advance(t, 10*time.Second)
	expired := f.sink.Expired()
	require.Len(t, expired, 1)
	assert.Equal(t, "planet", expired[0].Round.Answer)

	_, consumed := f.games.Guess("c1", "owner", "planet")
	assert.False(t, consumed)

	// The owner can start again once the round is gone.
	_, err = f.games.StartScramble(ScrambleRequest{Word: "planet", OwnerID: "owner", ChannelID: "c1"})
	assert.NoError(t, err)
}

func TestScramble_OnePerOwnerAndChannel(t *testing.T) {
	f := newFixture(t)
	_, err := f.games.StartScramble(ScrambleRequest{Word: "planet", OwnerID: "owner", ChannelID: "c1"})
	require.NoError(t, err)

	_, err = f.games.StartScramble(ScrambleRequest{Word: "server", OwnerID: "owner", ChannelID: "c1"})
	assert.ErrorIs(t, err, ErrRoundActive)
	assert.Equal(t, 1, f.games.Active())

	_, err = f.games.StartScramble(ScrambleRequest{Word: "server", OwnerID: "owner", ChannelID: "c2"})
	assert.NoError(t, err)
}

func TestScramble_RejectsUnscrambleable(t *testing.T) {
	f := newFixture(t)
	for _, w := range []string{"", "a", "aaaa"} {
		_, err := f.games.StartScramble(ScrambleRequest{Word: w, OwnerID: "o", ChannelID: "c"})
		assert.ErrorIs(t, err, ErrInvalidRound, "word=%q", w)
	}
}

func TestAnswer_ScrambleRoundIsStale(t *testing.T) {
	f := newFixture(t)
	r, _ := f.games.StartScramble(ScrambleRequest{Word: "planet", OwnerID: "owner", ChannelID: "c1"})
	res, err := f.games.Answer(r.ID, "owner", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusStale, res.Status)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "expired", Expired.String())
	assert.True(t, Correct.Terminal())
	assert.False(t, Pending.Terminal())
	assert.Equal(t, "not_owner", StatusNotOwner.String())
}
