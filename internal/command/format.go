package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/guildkeeper/internal/assistant"
	"github.com/roach88/guildkeeper/internal/chat"
	"github.com/roach88/guildkeeper/internal/leveling"
	"github.com/roach88/guildkeeper/internal/minigame"
	"github.com/roach88/guildkeeper/internal/presence"
	"github.com/roach88/guildkeeper/internal/timed"
)

// GenericFailure is the only text users see for collaborator failures.
const GenericFailure = "Something went wrong, try again later."

// LevelUp announces a level crossing.
func LevelUp(p leveling.Progress) chat.Message {
	return chat.Text(fmt.Sprintf("🎉 %s reached **level %d**! (%d XP)", chat.Mention(p.UserID), p.NewLevel, p.XP))
}

// WelcomeBack greets a returning AFK user.
func WelcomeBack(m presence.Mark, now time.Time) chat.Message {
	return chat.Text(fmt.Sprintf("👋 Welcome back %s! You were away for %s (%s).",
		chat.Mention(m.UserID), timed.Humanize(m.Away(now)), m.Reason))
}

// AwayNotice tells a channel a mentioned user is AFK.
func AwayNotice(m presence.Mark, now time.Time) chat.Message {
	return chat.Text(fmt.Sprintf("💤 %s is AFK: %s (%s ago)",
		chat.Mention(m.UserID), m.Reason, timed.Humanize(m.Away(now))))
}

// CountingRejected explains a counting reset.
func CountingRejected(userID string, expected int) chat.Message {
	return chat.Text(fmt.Sprintf("❌ %s broke the count! The next number was **%d**. Start again from 1.",
		chat.Mention(userID), expected))
}

// RoundResult reports an answered trivia or scramble round.
func RoundResult(res minigame.Result) chat.Message {
	r := res.Round
	owner := chat.Mention(r.OwnerID)
	switch r.State {
	case minigame.Correct:
		return chat.Text(fmt.Sprintf("✅ Correct, %s! The answer was **%s**. +%d XP", owner, r.Answer, res.Progress.Awarded))
	case minigame.Expired:
		return RoundExpired(res)
	default:
		return chat.Text(fmt.Sprintf("❌ Not quite, %s. The answer was **%s**.", owner, r.Answer))
	}
}

// RoundExpired reveals the answer of a timed-out round.
func RoundExpired(res minigame.Result) chat.Message {
	r := res.Round
	return chat.Text(fmt.Sprintf("⌛ Time's up, %s! The answer was **%s**.", chat.Mention(r.OwnerID), r.Answer))
}

// GiveawayEnded announces a giveaway outcome.
func GiveawayEnded(res timed.GiveawayResult) chat.Message {
	g := res.Giveaway
	embed := &chat.Embed{
		Title:  "🎁 Giveaway: " + g.Prize,
		Footer: "ID " + g.ID,
	}
	switch {
	case res.Reason == timed.EndCancelled:
		embed.Description = "This giveaway was cancelled by the host."
		embed.Color = chat.ColorWarning
	case res.NoEntrants():
		embed.Description = "Nobody entered, so there is no winner."
		embed.Color = chat.ColorWarning
	default:
		embed.Description = fmt.Sprintf("Congratulations %s, you won **%s**!", chat.Mention(res.Winner), g.Prize)
		embed.Color = chat.ColorSuccess
		embed.Fields = []chat.Field{{Name: "Entrants", Value: fmt.Sprint(len(g.Entrants)), Inline: true}}
	}
	return chat.Message{Embed: embed}
}

// Delivered is the text sent when a reminder or timer fires.
func Delivered(s timed.Scheduled) chat.Message {
	if s.Kind == timed.KindTimer {
		return chat.Text(fmt.Sprintf("⏱️ %s your timer **%s** is done (%s).",
			chat.Mention(s.UserID), s.Text, timed.Humanize(s.FiresAt.Sub(s.CreatedAt))))
	}
	return chat.Text(fmt.Sprintf("⏰ %s reminder: %s", chat.Mention(s.UserID), s.Text))
}

// AssistantReply renders an LLM answer with the model footer.
func AssistantReply(r assistant.Reply, replyTo string) chat.Message {
	return chat.Message{
		ReplyTo: replyTo,
		Embed: &chat.Embed{
			Description: r.Text,
			Color:       chat.ColorSuccess,
			Footer: fmt.Sprintf("🎯 %s | 🎭 %s | 🎫 %s tokens | 📡 %s req",
				r.ModelName, r.Persona, orNA(r.RateLimit.RemainingTokens), orNA(r.RateLimit.RemainingRequests)),
		},
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func errorText(err error) chat.Message {
	return chat.Text("❌ " + err.Error())
}

func catalogue(title string, opts []assistant.Option, hint string) chat.Message {
	lines := make([]string, 0, len(opts))
	for _, o := range opts {
		mark := "⬜"
		if o.Selected {
			mark = "✅"
		}
		value, _ := assistant.Truncate(o.Value, 60)
		lines = append(lines, fmt.Sprintf("%s `%s` - %s", mark, o.Key, value))
	}
	return chat.Message{Embed: &chat.Embed{
		Title:       title,
		Description: strings.Join(lines, "\n"),
		Color:       chat.ColorInfo,
		Footer:      hint,
	}}
}
