// Package leveling tracks experience points and derives levels from them.
//
// Level is a pure function of XP: level = floor(sqrt(xp/100)), and level L
// is reached at 100·L² XP. No level is stored, so the two cannot drift.
package leveling

import (
	"log/slog"
	"math"
	"sort"

	"github.com/roach88/guildkeeper/internal/keyed"
	"github.com/roach88/guildkeeper/internal/random"
)

// XPPerLevelUnit is the XP multiplier in Threshold: level L needs 100·L².
const XPPerLevelUnit = 100

// DefaultLeaderboardSize is the number of rows surfaced when callers do not
// ask for a specific size, and the upper bound for Leaderboard.
const DefaultLeaderboardSize = 10

// Level returns the level for an XP total.
func Level(xp int64) int {
	if xp <= 0 {
		return 0
	}
	units := xp / XPPerLevelUnit
	l := int64(math.Sqrt(float64(units)))
	// Correct float rounding at perfect-square boundaries.
	for l*l > units {
		l--
	}
	for (l+1)*(l+1) <= units {
		l++
	}
	return int(l)
}

// Threshold returns the XP needed to reach level.
func Threshold(level int) int64 {
	if level <= 0 {
		return 0
	}
	l := int64(level)
	return XPPerLevelUnit * l * l
}

// Progress is the outcome of one XP award.
type Progress struct {
	UserID   string
	Awarded  int64
	XP       int64
	OldLevel int
	NewLevel int
}

// LeveledUp reports whether the award crossed at least one level threshold.
func (p Progress) LeveledUp() bool {
	return p.NewLevel > p.OldLevel
}

// Rank describes a user's standing.
type Rank struct {
	UserID   string
	XP       int64
	Level    int
	XPToNext int64
}

// Standing is one leaderboard row.
type Standing struct {
	UserID string
	XP     int64
	Level  int
}

// Config bounds the per-message award.
type Config struct {
	MinAward int
	MaxAward int
}

// DefaultConfig awards 1–5 XP per qualifying message.
func DefaultConfig() Config {
	return Config{MinAward: 1, MaxAward: 5}
}

// Tracker owns every ExperienceRecord.
type Tracker struct {
	cfg Config
	rng random.Source
	xp  *keyed.Store[string, int64]
}

// New creates a Tracker. A nil rng uses random.Global.
func New(cfg Config, rng random.Source) *Tracker {
	if rng == nil {
		rng = random.Global{}
	}
	if cfg.MinAward < 0 {
		cfg.MinAward = 0
	}
	if cfg.MaxAward < cfg.MinAward {
		cfg.MaxAward = cfg.MinAward
	}
	return &Tracker{
		cfg: cfg,
		rng: rng,
		xp:  keyed.New[string, int64](),
	}
}

// RecordActivity adds amount XP to userID. Level-up is decided by comparing
// the level before and after this single increment, under the user's lock.
// Negative amounts are treated as zero.
func (t *Tracker) RecordActivity(userID string, amount int64) Progress {
	if amount < 0 {
		amount = 0
	}

	var p Progress
	t.xp.Update(userID, func(cur int64, _ bool) (int64, bool) {
		next := cur + amount
		p = Progress{
			UserID:   userID,
			Awarded:  amount,
			XP:       next,
			OldLevel: Level(cur),
			NewLevel: Level(next),
		}
		return next, true
	})

	if p.LeveledUp() {
		slog.Info("level up", "user", userID, "level", p.NewLevel, "xp", p.XP)
	}
	return p
}

// RecordMessage awards the per-message XP for a qualifying chat event.
func (t *Tracker) RecordMessage(userID string) Progress {
	amount := random.Between(t.rng, t.cfg.MinAward, t.cfg.MaxAward)
	return t.RecordActivity(userID, int64(amount))
}

// Rank returns the standing of userID. Unknown users have zero XP and are
// not materialised.
func (t *Tracker) Rank(userID string) Rank {
	xp, _ := t.xp.Get(userID)
	level := Level(xp)
	return Rank{
		UserID:   userID,
		XP:       xp,
		Level:    level,
		XPToNext: Threshold(level+1) - xp,
	}
}

// Leaderboard returns the top n users by XP, descending, ties in first-seen
// order. n is capped at DefaultLeaderboardSize and n <= 0 yields no rows;
// users with zero XP are excluded.
func (t *Tracker) Leaderboard(n int) []Standing {
	if n <= 0 {
		return []Standing{}
	}
	if n > DefaultLeaderboardSize {
		n = DefaultLeaderboardSize
	}
	return t.LeaderboardAll(n)
}

// LeaderboardAll is Leaderboard without the surface cap. n <= 0 returns
// every user with XP.
func (t *Tracker) LeaderboardAll(n int) []Standing {
	snap := t.xp.Snapshot()

	rows := make([]Standing, 0, len(snap))
	for _, e := range snap {
		if e.Value <= 0 {
			continue
		}
		rows = append(rows, Standing{UserID: e.Key, XP: e.Value, Level: Level(e.Value)})
	}

	// Snapshot is in first-seen order; a stable sort keeps it for ties.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].XP > rows[j].XP })

	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// Reset deletes a user's record.
func (t *Tracker) Reset(userID string) bool {
	return t.xp.Delete(userID)
}

// ResetAll deletes every record and returns how many were removed.
func (t *Tracker) ResetAll() int {
	return t.xp.Clear()
}

// Users returns the number of materialised records.
func (t *Tracker) Users() int {
	return t.xp.Len()
}
