package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/guildkeeper/internal/command"
	"github.com/roach88/guildkeeper/internal/journal"
	"github.com/roach88/guildkeeper/internal/leveling"
	"github.com/roach88/guildkeeper/internal/minigame"
	"github.com/roach88/guildkeeper/internal/timed"
)

// awarder credits XP for games and journals level-ups. The level-up
// message itself is sent by whoever renders the game result.
type awarder struct{ e *Engine }

func (a awarder) RecordActivity(userID string, amount int64) leveling.Progress {
	p := a.e.xp.RecordActivity(userID, amount)
	if p.LeveledUp() {
		a.e.noteLevelUp(a.e.ctx, p, "")
	}
	return p
}

func (e *Engine) noteLevelUp(ctx context.Context, p leveling.Progress, channelID string) {
	e.record(ctx, journal.Entry{
		Kind:      journal.KindLevelUp,
		Subject:   p.UserID,
		ChannelID: channelID,
		Detail: map[string]any{
			"xp":        p.XP,
			"old_level": p.OldLevel,
			"new_level": p.NewLevel,
		},
	})
}

// timedSink announces giveaway outcomes and delivers reminders. It runs on
// the dispatcher: expiries arrive as task events, early ends inside the
// command that caused them.
type timedSink struct{ e *Engine }

func (s timedSink) GiveawayEnded(res timed.GiveawayResult) {
	e := s.e
	g := res.Giveaway
	e.record(e.ctx, journal.Entry{
		Kind:      journal.KindGiveawayEnded,
		Subject:   g.ID,
		ChannelID: g.ChannelID,
		Detail: map[string]any{
			"prize":    g.Prize,
			"reason":   string(res.Reason),
			"winner":   res.Winner,
			"entrants": len(g.Entrants),
		},
	})
	if err := e.send(e.ctx, e.seq.Current(), g.ChannelID, command.GiveawayEnded(res)); err != nil {
		slog.Error("giveaway announcement failed", "giveaway", g.ID, "error", err)
	}
}

func (s timedSink) Delivered(sch timed.Scheduled) {
	e := s.e
	e.record(e.ctx, journal.Entry{
		Kind:      journal.KindDelivered,
		Subject:   sch.UserID,
		ChannelID: sch.ChannelID,
		Detail: map[string]any{
			"kind":  string(sch.Kind),
			"token": uint64(sch.Token),
			"text":  sch.Text,
		},
	})
	if err := e.send(e.ctx, e.seq.Current(), sch.ChannelID, command.Delivered(sch)); err != nil {
		slog.Error("scheduled delivery failed", "kind", sch.Kind, "token", sch.Token, "error", err)
	}
}

// gameSink journals every round resolution and announces timeouts. Answers
// and guesses are announced by the caller that received the result.
type gameSink struct{ e *Engine }

func (s gameSink) RoundResolved(res minigame.Result) {
	e := s.e
	r := res.Round
	e.record(e.ctx, journal.Entry{
		Kind:      journal.KindRoundResolved,
		Subject:   r.ID,
		ChannelID: r.ChannelID,
		Detail: map[string]any{
			"kind":  string(r.Kind),
			"owner": r.OwnerID,
			"state": r.State.String(),
		},
	})
	if r.State != minigame.Expired {
		return
	}
	if err := e.send(e.ctx, e.seq.Current(), r.ChannelID, command.RoundExpired(res)); err != nil {
		slog.Error("round timeout announcement failed", "round", r.ID, "error", err)
	}
}
