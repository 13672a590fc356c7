package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/guildkeeper/internal/chat"
	"github.com/roach88/guildkeeper/internal/command"
	"github.com/roach88/guildkeeper/internal/counting"
	"github.com/roach88/guildkeeper/internal/journal"
)

func (e *Engine) handleMessage(ctx context.Context, ev Event) error {
	in := ev.Inbound
	if in.AuthorBot || in.AuthorID == "" {
		return nil
	}
	slog.Debug("message", "seq", ev.Seq, "author", in.AuthorID, "channel", in.ChannelID)

	if reply, ok := e.router.Handle(in); ok {
		return e.deliver(ctx, ev, reply)
	}
	return e.fanOut(ctx, ev)
}

func (e *Engine) handleInteraction(ctx context.Context, ev Event) error {
	in := ev.Inbound
	if in.AuthorBot || in.AuthorID == "" {
		return nil
	}
	slog.Debug("interaction", "seq", ev.Seq, "author", in.AuthorID, "custom_id", in.CustomID)
	return e.deliver(ctx, ev, e.router.HandleInteraction(in))
}

// fanOut handles a qualifying (non-command) message. Each stage mutates
// only its own component; replies are collected and sent at the end.
func (e *Engine) fanOut(ctx context.Context, ev Event) error {
	in := ev.Inbound
	now := e.wall.Now()
	var out []chat.Message

	// Presence: the author is back.
	if m, ok := e.presence.CheckAndClear(in.AuthorID); ok {
		out = append(out, command.WelcomeBack(m, now))
		e.record(ctx, journal.Entry{
			Kind:      journal.KindWelcomeBack,
			Subject:   in.AuthorID,
			ChannelID: in.ChannelID,
			Detail: map[string]any{
				"reason":       m.Reason,
				"away_seconds": int64(m.Away(now).Seconds()),
			},
		})
	}

	// Presence: mentioned users who are away. Lookup never clears.
	seen := map[string]bool{in.AuthorID: true}
	for _, id := range in.Mentions {
		if seen[id] {
			continue
		}
		seen[id] = true
		if m, ok := e.presence.Lookup(id); ok {
			out = append(out, command.AwayNotice(m, now))
		}
	}

	// Scramble: the owner's next message in the channel is the guess and
	// is not also a counting submission.
	res, guessed := e.games.Guess(in.ChannelID, in.AuthorID, in.Content)
	if guessed {
		out = append(out, command.RoundResult(res))
		if res.Progress.LeveledUp() {
			out = append(out, command.LevelUp(res.Progress))
		}
	}

	var reaction string
	if !guessed {
		cr := e.counting.Submit(in.ChannelID, in.AuthorID, in.Content)
		switch cr.Outcome {
		case counting.Accepted:
			reaction = chat.ReactAccepted
			if cr.Progress.LeveledUp() {
				out = append(out, command.LevelUp(cr.Progress))
			}
		case counting.Rejected:
			reaction = chat.ReactRejected
			out = append(out, command.CountingRejected(in.AuthorID, cr.Expected))
			e.record(ctx, journal.Entry{
				Kind:      journal.KindCountingReset,
				Subject:   in.ChannelID,
				ChannelID: in.ChannelID,
				Detail: map[string]any{
					"user":     in.AuthorID,
					"value":    cr.Value,
					"expected": cr.Expected,
				},
			})
		}
	}

	// Activity XP for every qualifying message.
	if p := e.xp.RecordMessage(in.AuthorID); p.LeveledUp() {
		e.noteLevelUp(ctx, p, in.ChannelID)
		out = append(out, command.LevelUp(p))
	}

	var firstErr error
	if reaction != "" {
		if err := e.messenger.React(ctx, in.ChannelID, in.ID, reaction); err != nil {
			firstErr = e.deliveryFailed(ctx, ev.Seq, in.ChannelID, err)
		}
	}
	if err := e.send(ctx, ev.Seq, in.ChannelID, out...); err != nil && firstErr == nil {
		firstErr = err
	}

	// Assistant: chat channels, and replies to the bot anywhere.
	if (e.chatChannels[in.ChannelID] || in.RepliesToSelf()) && !guessed {
		if err := e.deliver(ctx, ev, e.router.Converse(in, in.Content)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// deliver sends the immediate part of a reply and starts its background
// part. Background results come back through Submit.
func (e *Engine) deliver(ctx context.Context, ev Event, reply command.Reply) error {
	channelID := ev.Inbound.ChannelID
	err := e.send(ctx, ev.Seq, channelID, reply.Messages...)

	if reply.Background != nil {
		e.bg.Add(1)
		go func() {
			defer e.bg.Done()
			msgs := reply.Background(ctx)
			if len(msgs) == 0 {
				return
			}
			if !e.Submit(func() {
				if err := e.send(e.ctx, ev.Seq, channelID, msgs...); err != nil {
					logEventError(ev, err)
				}
			}) {
				slog.Debug("engine stopped, background reply dropped", "seq", ev.Seq)
			}
		}()
	}
	return err
}

// send delivers msgs in order. A failure does not stop later messages;
// the first error is returned.
func (e *Engine) send(ctx context.Context, seq int64, channelID string, msgs ...chat.Message) error {
	var firstErr error
	for _, m := range msgs {
		if err := e.messenger.Send(ctx, channelID, m); err != nil {
			rerr := e.deliveryFailed(ctx, seq, channelID, err)
			if firstErr == nil {
				firstErr = rerr
			}
		}
	}
	return firstErr
}

func (e *Engine) deliveryFailed(ctx context.Context, seq int64, channelID string, err error) error {
	e.record(ctx, journal.Entry{
		Kind:      journal.KindDeliveryFailed,
		Subject:   channelID,
		ChannelID: channelID,
		Detail:    map[string]any{"event_seq": seq, "error": err.Error()},
	})
	return newDeliveryError(seq, channelID, err)
}

// record appends to the journal when one is configured. Journal failures
// are logged and never affect the event.
func (e *Engine) record(ctx context.Context, entry journal.Entry) {
	if e.journal == nil {
		return
	}
	entry.Seq = e.seq.Next()
	entry.RecordedAt = e.wall.Now()
	if err := e.journal.Record(ctx, entry); err != nil {
		slog.Error("journal write failed", "kind", entry.Kind, "seq", entry.Seq, "error", err)
	}
}
