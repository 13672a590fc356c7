// Package presence tracks users who have declared themselves away (AFK).
package presence

import (
	"strings"
	"time"

	"github.com/roach88/guildkeeper/internal/keyed"
)

// DefaultReason is used when a user marks away without giving a reason.
const DefaultReason = "AFK"

// Mark is a user's away declaration.
type Mark struct {
	UserID   string
	Reason   string
	MarkedAt time.Time
}

// Away returns how long the user has been away as of now.
func (m Mark) Away(now time.Time) time.Duration {
	d := now.Sub(m.MarkedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Tracker owns every PresenceMark. At most one mark exists per user.
type Tracker struct {
	marks *keyed.Store[string, Mark]
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{marks: keyed.New[string, Mark]()}
}

// MarkAway records userID as away, overwriting any existing mark.
func (t *Tracker) MarkAway(userID, reason string, now time.Time) Mark {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}
	m := Mark{UserID: userID, Reason: reason, MarkedAt: now}
	t.marks.Put(userID, m)
	return m
}

// CheckAndClear removes and returns the user's mark. Concurrent callers for
// the same user see the mark at most once, so "welcome back" fires once.
func (t *Tracker) CheckAndClear(userID string) (Mark, bool) {
	return t.marks.LoadAndDelete(userID)
}

// Lookup returns the user's mark without clearing it.
func (t *Tracker) Lookup(userID string) (Mark, bool) {
	return t.marks.Get(userID)
}

// Away returns the number of users currently marked.
func (t *Tracker) Away() int {
	return t.marks.Len()
}
