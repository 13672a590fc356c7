// Package counting implements the per-channel sequential counting game.
//
// A channel is Uninitialized until activated, then Active(v). A numeric
// message equal to v+1 advances to Active(v+1); any other number resets to
// Active(0). Non-numeric messages are ignored.
package counting

import (
	"strconv"
	"strings"

	"github.com/roach88/guildkeeper/internal/keyed"
	"github.com/roach88/guildkeeper/internal/leveling"
)

// DefaultAward is the XP credited for each accepted number.
const DefaultAward = 2

// Outcome classifies a submission.
type Outcome int

const (
	// Ignored means the message was not a number.
	Ignored Outcome = iota
	// Inactive means the channel is not a counting channel.
	Inactive
	// Accepted means the number was the expected next value.
	Accepted
	// Rejected means the number was wrong and the channel reset to 0.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Inactive:
		return "inactive"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result is the outcome of one submission.
type Result struct {
	Outcome Outcome
	// Value is the number the user submitted.
	Value int
	// Expected is the number the channel was waiting for.
	Expected int
	// Current is the channel value after the transition.
	Current int
	// Progress is the XP award for an accepted number.
	Progress leveling.Progress
}

// Awarder credits XP. Satisfied by *leveling.Tracker.
type Awarder interface {
	RecordActivity(userID string, amount int64) leveling.Progress
}

// Game owns every CountingChannelState.
type Game struct {
	award    int64
	awarder  Awarder
	channels *keyed.Store[string, int]
}

// New creates a Game. awarder may be nil to disable XP credit.
func New(awarder Awarder, award int64) *Game {
	return &Game{
		award:    award,
		awarder:  awarder,
		channels: keyed.New[string, int](),
	}
}

// Activate designates channelID a counting channel at 0, overwriting any
// previous state.
func (g *Game) Activate(channelID string) {
	g.channels.Put(channelID, 0)
}

// Deactivate stops counting in channelID.
func (g *Game) Deactivate(channelID string) bool {
	return g.channels.Delete(channelID)
}

// State returns the current value and whether the channel is active.
func (g *Game) State(channelID string) (int, bool) {
	return g.channels.Get(channelID)
}

// Submit validates content posted by userID in channelID.
//
// The compare and the transition happen under the channel lock, so of two
// simultaneous correct submissions one advances and the other observes the
// new value and resets.
func (g *Game) Submit(channelID, userID, content string) Result {
	text := strings.TrimSpace(content)
	if !isInteger(text) {
		return Result{Outcome: Ignored}
	}
	// A number too large for int can never be the next value; it still
	// counts as a wrong number.
	n, err := strconv.Atoi(text)
	overflow := err != nil

	res := Result{Outcome: Inactive, Value: n}
	g.channels.Update(channelID, func(cur int, ok bool) (int, bool) {
		if !ok {
			return cur, false
		}
		res.Expected = cur + 1
		if !overflow && n == cur+1 {
			res.Outcome = Accepted
			res.Current = n
			return n, true
		}
		res.Outcome = Rejected
		res.Current = 0
		return 0, true
	})

	if res.Outcome == Accepted && g.awarder != nil && g.award > 0 {
		res.Progress = g.awarder.RecordActivity(userID, g.award)
	}
	return res
}

// isInteger reports whether s is an optional sign followed by decimal digits.
func isInteger(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Channels returns the number of active counting channels.
func (g *Game) Channels() int {
	return g.channels.Len()
}
