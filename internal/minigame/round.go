package minigame

import (
	"errors"
	"time"

	"github.com/roach88/guildkeeper/internal/leveling"
	"github.com/roach88/guildkeeper/internal/timer"
)

var (
	// ErrInvalidRound is returned for malformed round requests.
	ErrInvalidRound = errors.New("invalid round")
	// ErrInvalidChoice is returned for an option index outside the round.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrRoundActive is returned when the owner already has a scramble
	// running in the channel.
	ErrRoundActive = errors.New("round already active")
)

// Kind is the mini-game type.
type Kind string

const (
	KindTrivia   Kind = "trivia"
	KindScramble Kind = "scramble"
)

// State is a round's position in Pending -> {Correct, Incorrect, Expired}.
type State int

const (
	Pending State = iota
	Correct
	Incorrect
	Expired
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is a resolution.
func (s State) Terminal() bool {
	return s != Pending
}

// Round is a snapshot of one mini-game round.
type Round struct {
	ID        string
	Kind      Kind
	OwnerID   string
	ChannelID string
	// Prompt is the trivia question or the scrambled word.
	Prompt string
	// Options are the trivia choices; empty for scramble.
	Options []string
	// AnswerIndex is the correct trivia option.
	AnswerIndex int
	// Answer is the correct option text or the unscrambled word.
	Answer    string
	StartedAt time.Time
	Deadline  time.Time
	State     State
}

type round struct {
	Round
	token timer.Token
}

// Status classifies the outcome of an answer or guess attempt.
type Status int

const (
	// StatusResolved means this attempt resolved the round; see Round.State.
	StatusResolved Status = iota
	// StatusNotOwner means someone other than the owner tried to answer.
	StatusNotOwner
	// StatusStale means the round is unknown or already resolved.
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusNotOwner:
		return "not_owner"
	case StatusStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Result reports an attempt or a timeout.
type Result struct {
	Status Status
	Round  Round
	// Guess is the text the owner sent (scramble) or the chosen option (trivia).
	Guess string
	// Progress is the XP award for a correct resolution.
	Progress leveling.Progress
}

// Awarder credits XP. Satisfied by *leveling.Tracker.
type Awarder interface {
	RecordActivity(userID string, amount int64) leveling.Progress
}

// Sink observes every resolution. Timeouts are reported only here, from the
// timer dispatch context; answers and guesses are also returned to the
// caller.
type Sink interface {
	RoundResolved(Result)
}

type nopSink struct{}

func (nopSink) RoundResolved(Result) {}
