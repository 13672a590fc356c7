package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/guildkeeper/internal/assistant"
	"github.com/roach88/guildkeeper/internal/chat"
	"github.com/roach88/guildkeeper/internal/leveling"
	"github.com/roach88/guildkeeper/internal/minigame"
	"github.com/roach88/guildkeeper/internal/timed"
	"github.com/roach88/guildkeeper/internal/timer"
)

const (
	groupGeneral   = "General"
	groupLeveling  = "Leveling"
	groupPresence  = "Presence"
	groupGames     = "Games"
	groupTimed     = "Giveaways & reminders"
	groupAssistant = "Assistant"
)

func builtins() map[string]handler {
	return map[string]handler{
		"ping":  {usage: "ping", help: "check the bot is alive", group: groupGeneral, run: func(*Router, chat.Inbound, Invocation) Reply { return sayText("Pong! 🏓") }},
		"hello": {usage: "hello", help: "say hello", group: groupGeneral, run: (*Router).hello},
		"info":  {usage: "info", help: "about this bot", group: groupGeneral, run: (*Router).info},
		"help":  {usage: "help", help: "this list", group: groupGeneral, run: func(r *Router, _ chat.Inbound, _ Invocation) Reply { return r.help() }},

		"rank":        {usage: "rank [@user]", help: "level and XP", group: groupLeveling, run: (*Router).rank},
		"leaderboard": {usage: "leaderboard [n]", help: "top users by XP", group: groupLeveling, run: (*Router).leaderboard},
		"resetxp":     {usage: "resetxp @user|all", help: "reset XP (admins)", group: groupLeveling, run: (*Router).resetXP},

		"afk": {usage: "afk [reason]", help: "mark yourself away", group: groupPresence, run: (*Router).afk},

		"counting": {usage: "counting [off]", help: "start or stop counting here", group: groupGames, run: (*Router).counting},
		"trivia":   {usage: "trivia", help: "answer a trivia question", group: groupGames, run: (*Router).trivia},
		"answer":   {usage: "answer <round> <n>", help: "answer a trivia round", group: groupGames, run: (*Router).answer},
		"scramble": {usage: "scramble", help: "unscramble a word", group: groupGames, run: (*Router).scramble},

		"giveaway": {usage: "giveaway <duration> <prize>", help: "start a giveaway", group: groupTimed, run: (*Router).giveaway},
		"gjoin":    {usage: "gjoin <id>", help: "join a giveaway", group: groupTimed, run: (*Router).gjoin},
		"gend":     {usage: "gend <id>", help: "draw a giveaway now", group: groupTimed, run: (*Router).gend},
		"gcancel":  {usage: "gcancel <id>", help: "cancel a giveaway", group: groupTimed, run: (*Router).gcancel},
		"remind":   {usage: "remind <duration> <text>", help: "remind you later", group: groupTimed, run: (*Router).remind},
		"timer":    {usage: "timer <duration> [label]", help: "start a countdown", group: groupTimed, run: (*Router).timer},
		"cancel":   {usage: "cancel <token>", help: "cancel a reminder or timer", group: groupTimed, run: (*Router).cancel},

		"ask":     {usage: "ask <question>", help: "ask the assistant", group: groupAssistant, run: (*Router).ask},
		"clear":   {usage: "clear", help: "forget your conversation", group: groupAssistant, run: (*Router).clear},
		"history": {usage: "history", help: "size of your conversation", group: groupAssistant, run: (*Router).history},
		"model":   {usage: "model [key]", help: "list or switch models", group: groupAssistant, run: (*Router).model},
		"persona": {usage: "persona [key]", help: "list or switch personas", group: groupAssistant, run: (*Router).persona},
		"status":  {usage: "status", help: "assistant status", group: groupAssistant, run: (*Router).status},
	}
}

// ---- General ----

func (r *Router) hello(in chat.Inbound, _ Invocation) Reply {
	return sayText(fmt.Sprintf("Hello %s 👋", chat.Mention(in.AuthorID)))
}

func (r *Router) info(chat.Inbound, Invocation) Reply {
	return say(chat.Message{Embed: &chat.Embed{
		Title:       "🤖 guildkeeper",
		Description: "Engagement bot: leveling, AFK, counting, giveaways, reminders and mini-games.",
		Color:       chat.ColorInfo,
		Fields: []chat.Field{
			{Name: "Prefix", Value: "`" + r.prefix + "`", Inline: true},
			{Name: "Help", Value: "`" + r.prefix + "help`", Inline: true},
		},
	}})
}

// ---- Leveling ----

func (r *Router) rank(in chat.Inbound, inv Invocation) Reply {
	rk := r.svc.XP.Rank(targetUser(in, inv))
	return say(chat.Message{Embed: &chat.Embed{
		Title:       "📊 Rank",
		Color:       chat.ColorInfo,
		Description: chat.Mention(rk.UserID),
		Fields: []chat.Field{
			{Name: "Level", Value: strconv.Itoa(rk.Level), Inline: true},
			{Name: "XP", Value: strconv.FormatInt(rk.XP, 10), Inline: true},
			{Name: "To next level", Value: strconv.FormatInt(rk.XPToNext, 10), Inline: true},
		},
	}})
}

func (r *Router) leaderboard(_ chat.Inbound, inv Invocation) Reply {
	n := leveling.DefaultLeaderboardSize
	if len(inv.Args) > 0 {
		v, err := strconv.Atoi(inv.Args[0])
		if err != nil || v < 1 {
			return sayText("❌ Usage: " + r.prefix + "leaderboard [n]")
		}
		n = v
	}
	rows := r.svc.XP.Leaderboard(n)
	if len(rows) == 0 {
		return sayText("Nobody has earned XP yet.")
	}
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = fmt.Sprintf("**%d.** %s - level %d (%d XP)", i+1, chat.Mention(row.UserID), row.Level, row.XP)
	}
	return say(chat.Message{Embed: &chat.Embed{
		Title:       "🏆 Leaderboard",
		Description: strings.Join(lines, "\n"),
		Color:       chat.ColorInfo,
	}})
}

func (r *Router) resetXP(in chat.Inbound, inv Invocation) Reply {
	if !r.isAdmin(in.AuthorID) {
		return sayText("❌ Only admins can reset XP.")
	}
	if len(inv.Args) == 0 && len(in.Mentions) == 0 {
		return sayText("❌ Usage: " + r.prefix + "resetxp @user|all")
	}
	if len(inv.Args) > 0 && strings.EqualFold(inv.Args[0], "all") {
		n := r.svc.XP.ResetAll()
		slog.Info("xp reset", "scope", "all", "by", in.AuthorID, "users", n)
		return sayText(fmt.Sprintf("🧹 Reset XP for %d users.", n))
	}
	user := targetUser(in, inv)
	if !r.svc.XP.Reset(user) {
		return sayText(fmt.Sprintf("%s has no XP to reset.", chat.Mention(user)))
	}
	slog.Info("xp reset", "scope", "user", "user", user, "by", in.AuthorID)
	return sayText(fmt.Sprintf("🧹 Reset XP for %s.", chat.Mention(user)))
}

// ---- Presence ----

func (r *Router) afk(in chat.Inbound, inv Invocation) Reply {
	m := r.svc.Presence.MarkAway(in.AuthorID, inv.Rest, r.svc.Clock.Now())
	return sayText(fmt.Sprintf("💤 %s is now AFK: %s", chat.Mention(in.AuthorID), m.Reason))
}

// ---- Counting ----

func (r *Router) counting(in chat.Inbound, inv Invocation) Reply {
	if len(inv.Args) > 0 && strings.EqualFold(inv.Args[0], "off") {
		if !r.svc.Counting.Deactivate(in.ChannelID) {
			return sayText("Counting is not active in this channel.")
		}
		return sayText("🔢 Counting stopped in this channel.")
	}
	r.svc.Counting.Activate(in.ChannelID)
	return sayText("🔢 Counting started! Type **1** to begin.")
}

// ---- Mini-games ----

func (r *Router) trivia(in chat.Inbound, _ Invocation) Reply {
	q, ok := r.svc.Bank.PickQuestion(r.svc.Random)
	if !ok {
		return sayText("❌ No trivia questions are configured.")
	}
	round, err := r.svc.Games.StartTrivia(minigame.TriviaRequest{
		Question:     q.Question,
		Options:      q.Options,
		CorrectIndex: q.Answer,
		OwnerID:      in.AuthorID,
		ChannelID:    in.ChannelID,
	})
	if err != nil {
		return say(errorText(err))
	}

	lines := make([]string, len(round.Options))
	buttons := make([]chat.Button, len(round.Options))
	for i, opt := range round.Options {
		lines[i] = fmt.Sprintf("**%d.** %s", i+1, opt)
		buttons[i] = chat.Button{Label: opt, CustomID: TriviaButton(round.ID, i), Style: chat.ButtonSecondary}
	}
	return say(chat.Message{
		Embed: &chat.Embed{
			Title:       "❓ Trivia for " + in.AuthorName,
			Description: round.Prompt + "\n\n" + strings.Join(lines, "\n"),
			Color:       chat.ColorInfo,
			Footer: fmt.Sprintf("Round %s | %s to answer | %sanswer %s <n>",
				round.ID, timed.Humanize(round.Deadline.Sub(round.StartedAt)), r.prefix, round.ID),
		},
		Buttons: buttons,
	})
}

func (r *Router) answer(in chat.Inbound, inv Invocation) Reply {
	if len(inv.Args) < 2 {
		return sayText("❌ Usage: " + r.prefix + "answer <round> <n>")
	}
	n, err := strconv.Atoi(inv.Args[1])
	if err != nil {
		return sayText("❌ The answer must be an option number.")
	}
	return r.answerTrivia(in.AuthorID, inv.Args[0], n-1)
}

func (r *Router) answerTrivia(userID, roundID string, choice int) Reply {
	res, err := r.svc.Games.Answer(roundID, userID, choice)
	if err != nil {
		return say(errorText(err))
	}
	switch res.Status {
	case minigame.StatusNotOwner:
		return sayText(fmt.Sprintf("❌ %s, this round belongs to %s.", chat.Mention(userID), chat.Mention(res.Round.OwnerID)))
	case minigame.StatusStale:
		return sayText("⌛ That round is already over.")
	}
	msgs := []chat.Message{RoundResult(res)}
	if res.Progress.LeveledUp() {
		msgs = append(msgs, LevelUp(res.Progress))
	}
	return say(msgs...)
}

func (r *Router) scramble(in chat.Inbound, _ Invocation) Reply {
	word, ok := r.svc.Bank.PickWord(r.svc.Random)
	if !ok {
		return sayText("❌ No scramble words are configured.")
	}
	round, err := r.svc.Games.StartScramble(minigame.ScrambleRequest{
		Word:      word,
		OwnerID:   in.AuthorID,
		ChannelID: in.ChannelID,
	})
	if errors.Is(err, minigame.ErrRoundActive) {
		return sayText(fmt.Sprintf("❌ %s, finish your current scramble first.", chat.Mention(in.AuthorID)))
	}
	if err != nil {
		return say(errorText(err))
	}
	return sayText(fmt.Sprintf("🔤 %s, unscramble this word: **%s** (%s)",
		chat.Mention(in.AuthorID), round.Prompt, timed.Humanize(round.Deadline.Sub(round.StartedAt))))
}

// ---- Giveaways ----

func (r *Router) giveaway(in chat.Inbound, inv Invocation) Reply {
	if len(inv.Args) < 2 {
		return sayText("❌ Usage: " + r.prefix + "giveaway <duration> <prize>")
	}
	d, err := timed.ParseDuration(inv.Args[0])
	if err != nil {
		return say(errorText(err))
	}
	g, err := r.svc.Timed.StartGiveaway(timed.GiveawayRequest{
		Prize:     inv.After(1),
		HostID:    in.AuthorID,
		ChannelID: in.ChannelID,
		Duration:  d,
	})
	if err != nil {
		return say(errorText(err))
	}
	return say(chat.Message{
		Embed: &chat.Embed{
			Title:       "🎁 Giveaway: " + g.Prize,
			Description: fmt.Sprintf("Hosted by %s. Ends in %s.", chat.Mention(g.HostID), timed.Humanize(d)),
			Color:       chat.ColorInfo,
			Footer:      fmt.Sprintf("ID %s | %sgjoin %s", g.ID, r.prefix, g.ID),
		},
		Buttons: []chat.Button{{Label: "🎉 Join", CustomID: GiveawayButton(g.ID), Style: chat.ButtonPrimary}},
	})
}

func (r *Router) gjoin(in chat.Inbound, inv Invocation) Reply {
	if len(inv.Args) == 0 {
		return sayText("❌ Usage: " + r.prefix + "gjoin <id>")
	}
	return r.joinGiveaway(in.AuthorID, inv.Args[0])
}

func (r *Router) joinGiveaway(userID, id string) Reply {
	res := r.svc.Timed.Join(id, userID)
	switch res.Status {
	case timed.Joined:
		return sayText(fmt.Sprintf("🎉 %s joined the giveaway for **%s** (%d entrants).", chat.Mention(userID), res.Prize, res.Entrants))
	case timed.AlreadyJoined:
		return sayText(fmt.Sprintf("%s, you already joined this giveaway.", chat.Mention(userID)))
	default:
		return sayText("❌ That giveaway is not running.")
	}
}

func (r *Router) gend(in chat.Inbound, inv Invocation) Reply {
	return r.finishGiveaway(in, inv, r.svc.Timed.EndGiveaway)
}

func (r *Router) gcancel(in chat.Inbound, inv Invocation) Reply {
	return r.finishGiveaway(in, inv, r.svc.Timed.CancelGiveaway)
}

// finishGiveaway checks the caller may end the giveaway. The announcement
// itself is made by the giveaway sink, whichever path wins the draw.
func (r *Router) finishGiveaway(in chat.Inbound, inv Invocation, finish func(string) (timed.GiveawayResult, bool)) Reply {
	if len(inv.Args) == 0 {
		return sayText("❌ Usage: " + r.prefix + inv.Name + " <id>")
	}
	id := inv.Args[0]
	g, ok := r.svc.Timed.Giveaway(id)
	if !ok {
		return sayText("❌ That giveaway is not running.")
	}
	if g.HostID != in.AuthorID && !r.isAdmin(in.AuthorID) {
		return sayText("❌ Only the host can do that.")
	}
	if _, ok := finish(id); !ok {
		return sayText("❌ That giveaway is not running.")
	}
	return Reply{}
}

// ---- Reminders and timers ----

func (r *Router) remind(in chat.Inbound, inv Invocation) Reply {
	if len(inv.Args) < 2 {
		return sayText("❌ Usage: " + r.prefix + "remind <duration> <text>")
	}
	d, err := timed.ParseDuration(inv.Args[0])
	if err != nil {
		return say(errorText(err))
	}
	s, err := r.svc.Timed.Remind(timed.ScheduleRequest{
		UserID:    in.AuthorID,
		ChannelID: in.ChannelID,
		Text:      inv.After(1),
		Duration:  d,
	})
	if err != nil {
		return say(errorText(err))
	}
	return sayText(fmt.Sprintf("⏰ I'll remind you in %s. Cancel with `%scancel %d`.", timed.Humanize(d), r.prefix, s.Token))
}

func (r *Router) timer(in chat.Inbound, inv Invocation) Reply {
	if len(inv.Args) < 1 {
		return sayText("❌ Usage: " + r.prefix + "timer <duration> [label]")
	}
	d, err := timed.ParseDuration(inv.Args[0])
	if err != nil {
		return say(errorText(err))
	}
	s, err := r.svc.Timed.StartTimer(timed.ScheduleRequest{
		UserID:    in.AuthorID,
		ChannelID: in.ChannelID,
		Text:      inv.After(1),
		Duration:  d,
	})
	if err != nil {
		return say(errorText(err))
	}
	return sayText(fmt.Sprintf("⏱️ Timer **%s** started for %s. Cancel with `%scancel %d`.", s.Text, timed.Humanize(d), r.prefix, s.Token))
}

func (r *Router) cancel(in chat.Inbound, inv Invocation) Reply {
	if len(inv.Args) == 0 {
		return sayText("❌ Usage: " + r.prefix + "cancel <token>")
	}
	n, err := strconv.ParseUint(inv.Args[0], 10, 64)
	if err != nil {
		return sayText("❌ Tokens are numbers.")
	}
	switch r.svc.Timed.Cancel(timer.Token(n), in.AuthorID) {
	case timed.Cancelled:
		return sayText("🗑️ Cancelled.")
	case timed.NotOwner:
		return sayText("❌ That reminder belongs to someone else.")
	default:
		return sayText("Nothing to cancel: it already fired or never existed.")
	}
}

// ---- Assistant ----

func (r *Router) needAssistant() (Reply, bool) {
	if r.svc.Assistant == nil {
		return sayText("❌ The assistant is not configured."), false
	}
	return Reply{}, true
}

func (r *Router) ask(in chat.Inbound, inv Invocation) Reply {
	if reply, ok := r.needAssistant(); !ok {
		return reply
	}
	if inv.Rest == "" {
		return sayText("❌ Usage: " + r.prefix + "ask <question>")
	}
	return r.Converse(in, inv.Rest)
}

// Converse asks the assistant off the dispatcher and replies to in. A reply
// to one of the bot's messages carries that message as the prior turn.
func (r *Router) Converse(in chat.Inbound, prompt string) Reply {
	a := r.svc.Assistant
	if a == nil {
		return Reply{}
	}
	var prior string
	if in.RepliesToSelf() {
		prior = in.Reference.Content
	}
	return Reply{Background: func(ctx context.Context) []chat.Message {
		reply, err := a.Continue(ctx, in.AuthorID, prior, prompt)
		if errors.Is(err, assistant.ErrEmptyPrompt) {
			return nil
		}
		if err != nil {
			slog.Error("assistant failed", "user", in.AuthorID, "error", err)
			return []chat.Message{{Content: GenericFailure, ReplyTo: in.ID}}
		}
		return []chat.Message{AssistantReply(reply, in.ID)}
	}}
}

func (r *Router) clear(in chat.Inbound, _ Invocation) Reply {
	if reply, ok := r.needAssistant(); !ok {
		return reply
	}
	n := r.svc.Assistant.Clear(in.AuthorID)
	return sayText(fmt.Sprintf("🧹 Cleared %d messages from your history.", n))
}

func (r *Router) history(in chat.Inbound, _ Invocation) Reply {
	if reply, ok := r.needAssistant(); !ok {
		return reply
	}
	st := r.svc.Assistant.Status(in.AuthorID)
	return sayText(fmt.Sprintf("📝 You have **%d** messages in your history (max: %d).", st.HistoryLen, st.MaxHistory))
}

func (r *Router) model(_ chat.Inbound, inv Invocation) Reply {
	if reply, ok := r.needAssistant(); !ok {
		return reply
	}
	if len(inv.Args) == 0 {
		return say(catalogue("🎯 Models", r.svc.Assistant.Models(), "Use "+r.prefix+"model <key> to switch"))
	}
	name, err := r.svc.Assistant.SetModel(inv.Args[0])
	if err != nil {
		return say(errorText(err))
	}
	return sayText(fmt.Sprintf("✅ Model switched to **%s**.", name))
}

func (r *Router) persona(_ chat.Inbound, inv Invocation) Reply {
	if reply, ok := r.needAssistant(); !ok {
		return reply
	}
	if len(inv.Args) == 0 {
		return say(catalogue("🎭 Personas", r.svc.Assistant.Personas(), "Use "+r.prefix+"persona <key> to switch"))
	}
	if err := r.svc.Assistant.SetPersona(inv.Args[0]); err != nil {
		return say(errorText(err))
	}
	return sayText(fmt.Sprintf("✅ Persona switched to **%s**.", strings.ToLower(inv.Args[0])))
}

func (r *Router) status(in chat.Inbound, _ Invocation) Reply {
	if reply, ok := r.needAssistant(); !ok {
		return reply
	}
	st := r.svc.Assistant.Status(in.AuthorID)
	return say(chat.Message{Embed: &chat.Embed{
		Title: "📡 Assistant status",
		Color: chat.ColorInfo,
		Fields: []chat.Field{
			{Name: "🤖 Model", Value: st.ModelName, Inline: true},
			{Name: "🎭 Persona", Value: st.Persona, Inline: true},
			{Name: "👥 Active users", Value: strconv.Itoa(st.ActiveUsers), Inline: true},
			{Name: "📝 Your history", Value: fmt.Sprintf("%d/%d", st.HistoryLen, st.MaxHistory), Inline: true},
			{Name: "🎫 Tokens left", Value: orNA(st.RateLimit.RemainingTokens), Inline: true},
			{Name: "📡 Requests left", Value: orNA(st.RateLimit.RemainingRequests), Inline: true},
		},
	}})
}
