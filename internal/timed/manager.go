package timed

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/guildkeeper/internal/ids"
	"github.com/roach88/guildkeeper/internal/keyed"
	"github.com/roach88/guildkeeper/internal/random"
	"github.com/roach88/guildkeeper/internal/timer"
)

var (
	// ErrEmptyPrize is returned when a giveaway is started without a prize.
	ErrEmptyPrize = errors.New("prize must not be empty")
	// ErrEmptyText is returned when a reminder has no message.
	ErrEmptyText = errors.New("reminder text must not be empty")
)

// Limits bound how far ahead events may be scheduled.
type Limits struct {
	MaxGiveaway time.Duration
	MaxReminder time.Duration
	MaxTimer    time.Duration
}

// DefaultLimits: giveaways and reminders up to 7 days, timers up to 24 hours.
func DefaultLimits() Limits {
	return Limits{
		MaxGiveaway: Week,
		MaxReminder: Week,
		MaxTimer:    Day,
	}
}

// Sink receives the results of fired events. Implementations are called
// from the timer dispatch context (the engine loop in production) or from
// the caller of End/Cancel.
type Sink interface {
	GiveawayEnded(GiveawayResult)
	Delivered(Scheduled)
}

type nopSink struct{}

func (nopSink) GiveawayEnded(GiveawayResult) {}
func (nopSink) Delivered(Scheduled)          {}

// Manager owns giveaway state and the reminder/timer ownership index.
type Manager struct {
	timers *timer.Service
	sink   Sink
	ids    ids.Generator
	rng    random.Source
	limits Limits

	giveaways *keyed.Store[string, *giveaway]

	mu     sync.Mutex
	owners map[timer.Token]string // reminder/timer token -> requester
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDs sets the giveaway id generator. Default: UUIDv7.
func WithIDs(g ids.Generator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithRandom sets the draw source. Default: random.Global.
func WithRandom(src random.Source) Option {
	return func(m *Manager) { m.rng = src }
}

// WithLimits overrides the scheduling limits.
func WithLimits(l Limits) Option {
	return func(m *Manager) { m.limits = l }
}

// New creates a Manager scheduling on timers and reporting to sink.
func New(timers *timer.Service, sink Sink, opts ...Option) *Manager {
	if sink == nil {
		sink = nopSink{}
	}
	m := &Manager{
		timers:    timers,
		sink:      sink,
		ids:       ids.UUIDv7Generator{},
		rng:       random.Global{},
		limits:    DefaultLimits(),
		giveaways: keyed.New[string, *giveaway](),
		owners:    make(map[timer.Token]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

func (m *Manager) now() time.Time {
	return m.timers.Clock().Now()
}

// ---- Giveaways ----

// Giveaway is a read-only snapshot of a running giveaway.
type Giveaway struct {
	ID        string
	Prize     string
	HostID    string
	ChannelID string
	StartedAt time.Time
	EndsAt    time.Time
	Entrants  []string
}

type giveaway struct {
	Giveaway
	token   timer.Token
	members map[string]struct{}
}

func (g *giveaway) snapshot() Giveaway {
	s := g.Giveaway
	s.Entrants = append([]string(nil), g.Entrants...)
	return s
}

// GiveawayRequest starts a giveaway.
type GiveawayRequest struct {
	Prize     string
	HostID    string
	ChannelID string
	Duration  time.Duration
}

// EndReason says why a giveaway finished.
type EndReason string

const (
	// EndExpired means the scheduled end fired.
	EndExpired EndReason = "expired"
	// EndEarly means the host ended it before the deadline.
	EndEarly EndReason = "ended"
	// EndCancelled means it was withdrawn without a draw.
	EndCancelled EndReason = "cancelled"
)

// GiveawayResult is reported exactly once per giveaway.
type GiveawayResult struct {
	Giveaway Giveaway
	Reason   EndReason
	// Winner is empty when there were no entrants or the giveaway was cancelled.
	Winner string
}

// NoEntrants reports a draw that had nobody to pick.
func (r GiveawayResult) NoEntrants() bool {
	return r.Reason != EndCancelled && len(r.Giveaway.Entrants) == 0
}

// StartGiveaway validates req, stores the giveaway and schedules its end.
func (m *Manager) StartGiveaway(req GiveawayRequest) (Giveaway, error) {
	prize := strings.TrimSpace(req.Prize)
	if prize == "" {
		return Giveaway{}, ErrEmptyPrize
	}
	if err := checkDuration(req.Duration, m.limits.MaxGiveaway); err != nil {
		return Giveaway{}, fmt.Errorf("giveaway: %w", err)
	}

	now := m.now()
	g := &giveaway{
		Giveaway: Giveaway{
			ID:        m.ids.Generate(),
			Prize:     prize,
			HostID:    req.HostID,
			ChannelID: req.ChannelID,
			StartedAt: now,
			EndsAt:    now.Add(req.Duration),
		},
		members: make(map[string]struct{}),
	}
	id := g.ID
	m.giveaways.Put(id, g)

	tok := m.timers.Schedule(req.Duration, func() {
		m.finish(id, EndExpired)
	})
	m.giveaways.Update(id, func(cur *giveaway, ok bool) (*giveaway, bool) {
		if ok {
			cur.token = tok
		}
		return cur, ok
	})

	slog.Info("giveaway started", "giveaway", id, "host", req.HostID, "ends_at", g.EndsAt)
	return g.snapshot(), nil
}

// JoinStatus is the outcome of a join attempt.
type JoinStatus int

const (
	// Joined means the user was added.
	Joined JoinStatus = iota
	// AlreadyJoined means the user was already a participant.
	AlreadyJoined
	// NotFound means no such giveaway is running.
	NotFound
)

func (s JoinStatus) String() string {
	switch s {
	case Joined:
		return "joined"
	case AlreadyJoined:
		return "already_joined"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// JoinResult reports a join attempt and the entrant count afterwards.
type JoinResult struct {
	Status   JoinStatus
	Entrants int
	Prize    string
}

// Join adds userID to the giveaway. Joining twice is reported, never
// duplicated.
func (m *Manager) Join(id, userID string) JoinResult {
	res := JoinResult{Status: NotFound}
	m.giveaways.Update(id, func(cur *giveaway, ok bool) (*giveaway, bool) {
		if !ok {
			return cur, false
		}
		res.Prize = cur.Prize
		if _, in := cur.members[userID]; in {
			res.Status = AlreadyJoined
		} else {
			cur.members[userID] = struct{}{}
			cur.Entrants = append(cur.Entrants, userID)
			res.Status = Joined
		}
		res.Entrants = len(cur.Entrants)
		return cur, true
	})
	return res
}

// Giveaway returns a snapshot of a running giveaway.
func (m *Manager) Giveaway(id string) (Giveaway, bool) {
	var snap Giveaway
	var found bool
	m.giveaways.View(id, func(cur *giveaway, ok bool) {
		if ok {
			snap = cur.snapshot()
			found = true
		}
	})
	return snap, found
}

// Giveaways returns the number of running giveaways.
func (m *Manager) Giveaways() int {
	return m.giveaways.Len()
}

// EndGiveaway draws the giveaway now. It returns false if the giveaway is
// unknown or already finished.
func (m *Manager) EndGiveaway(id string) (GiveawayResult, bool) {
	return m.finish(id, EndEarly)
}

// CancelGiveaway withdraws the giveaway without a draw.
func (m *Manager) CancelGiveaway(id string) (GiveawayResult, bool) {
	return m.finish(id, EndCancelled)
}

// finish is the single exit for a giveaway. Whoever removes the state from
// the store owns the draw; every other caller is a race loser and no-ops.
func (m *Manager) finish(id string, reason EndReason) (GiveawayResult, bool) {
	g, ok := m.giveaways.LoadAndDelete(id)
	if !ok {
		slog.Debug("giveaway already finished", "giveaway", id, "reason", reason)
		return GiveawayResult{}, false
	}
	if reason != EndExpired {
		m.timers.Cancel(g.token)
	}

	res := GiveawayResult{Giveaway: g.snapshot(), Reason: reason}
	if reason != EndCancelled && len(g.Entrants) > 0 {
		res.Winner = g.Entrants[m.rng.IntN(len(g.Entrants))]
	}

	slog.Info("giveaway finished",
		"giveaway", id,
		"reason", reason,
		"entrants", len(g.Entrants),
		"winner", res.Winner,
	)
	m.sink.GiveawayEnded(res)
	return res, true
}

// ---- Reminders and timers ----

// Kind distinguishes reminders from countdown timers.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindTimer    Kind = "timer"
)

// ScheduleRequest asks for a reminder or timer.
type ScheduleRequest struct {
	UserID    string
	ChannelID string
	// Text is the reminder message or the timer label.
	Text     string
	Duration time.Duration
}

// Scheduled is a pending reminder or timer. Token is its only identity.
type Scheduled struct {
	Token     timer.Token
	Kind      Kind
	UserID    string
	ChannelID string
	Text      string
	CreatedAt time.Time
	FiresAt   time.Time
}

// Remind delivers req.Text back to the requester after req.Duration.
func (m *Manager) Remind(req ScheduleRequest) (Scheduled, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Scheduled{}, ErrEmptyText
	}
	return m.schedule(KindReminder, req, m.limits.MaxReminder)
}

// StartTimer notifies the requester when req.Duration has elapsed.
func (m *Manager) StartTimer(req ScheduleRequest) (Scheduled, error) {
	if strings.TrimSpace(req.Text) == "" {
		req.Text = "Timer"
	}
	return m.schedule(KindTimer, req, m.limits.MaxTimer)
}

func (m *Manager) schedule(kind Kind, req ScheduleRequest, max time.Duration) (Scheduled, error) {
	if err := checkDuration(req.Duration, max); err != nil {
		return Scheduled{}, fmt.Errorf("%s: %w", kind, err)
	}

	now := m.now()
	s := Scheduled{
		Kind:      kind,
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		Text:      strings.TrimSpace(req.Text),
		CreatedAt: now,
		FiresAt:   now.Add(req.Duration),
	}

	// ready orders the token assignment before the callback reads s.
	ready := make(chan struct{})
	s.Token = m.timers.Schedule(req.Duration, func() {
		<-ready
		m.mu.Lock()
		delete(m.owners, s.Token)
		m.mu.Unlock()
		m.sink.Delivered(s)
	})

	m.mu.Lock()
	m.owners[s.Token] = req.UserID
	m.mu.Unlock()
	close(ready)

	slog.Info("task scheduled", "kind", kind, "token", s.Token, "user", req.UserID, "fires_at", s.FiresAt)
	return s, nil
}

// CancelStatus is the outcome of a reminder/timer cancel.
type CancelStatus int

const (
	// Cancelled means the task was withdrawn before firing.
	Cancelled CancelStatus = iota
	// NotPending means the token is unknown, already fired or already cancelled.
	NotPending
	// NotOwner means the token belongs to another user.
	NotOwner
)

// Cancel withdraws a pending reminder or timer owned by userID.
func (m *Manager) Cancel(tok timer.Token, userID string) CancelStatus {
	m.mu.Lock()
	owner, ok := m.owners[tok]
	m.mu.Unlock()
	if !ok {
		return NotPending
	}
	if owner != userID {
		return NotOwner
	}
	if !m.timers.Cancel(tok) {
		return NotPending
	}

	m.mu.Lock()
	delete(m.owners, tok)
	m.mu.Unlock()
	return Cancelled
}

// PendingTasks returns the number of reminders and timers still waiting.
func (m *Manager) PendingTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owners)
}
