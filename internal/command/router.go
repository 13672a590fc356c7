// Package command is the text and component command surface. Handlers call
// only the engagement operations (leveling, presence, counting, timed,
// minigame) and the assistant, and return the messages to send; they never
// talk to the platform themselves.
package command

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/guildkeeper/internal/assistant"
	"github.com/roach88/guildkeeper/internal/chat"
	"github.com/roach88/guildkeeper/internal/counting"
	"github.com/roach88/guildkeeper/internal/leveling"
	"github.com/roach88/guildkeeper/internal/minigame"
	"github.com/roach88/guildkeeper/internal/presence"
	"github.com/roach88/guildkeeper/internal/random"
	"github.com/roach88/guildkeeper/internal/timed"
)

// Services are the components a handler may call. Assistant may be nil when
// no LLM is configured.
type Services struct {
	XP        *leveling.Tracker
	Presence  *presence.Tracker
	Counting  *counting.Game
	Timed     *timed.Manager
	Games     *minigame.Games
	Assistant *assistant.Assistant
	Bank      minigame.Bank
	Random    random.Source
	Clock     clockwork.Clock
	// Admins may run admin commands and end any giveaway.
	Admins []string
}

// Reply is what a handler wants sent to the originating channel.
type Reply struct {
	Messages []chat.Message
	// Background, when set, runs off the dispatcher (LLM calls). Its
	// messages are sent to the same channel when it returns.
	Background func(ctx context.Context) []chat.Message
}

func say(msgs ...chat.Message) Reply {
	return Reply{Messages: msgs}
}

func sayText(s string) Reply {
	return say(chat.Text(s))
}

type handler struct {
	usage string
	help  string
	group string
	run   func(r *Router, in chat.Inbound, inv Invocation) Reply
}

// Router dispatches commands to handlers.
type Router struct {
	prefix   string
	svc      Services
	admins   map[string]bool
	handlers map[string]handler
}

// New creates a Router. An empty prefix means DefaultPrefix.
func New(prefix string, svc Services) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if svc.Random == nil {
		svc.Random = random.Global{}
	}
	if svc.Clock == nil {
		svc.Clock = clockwork.NewRealClock()
	}
	r := &Router{
		prefix:   prefix,
		svc:      svc,
		admins:   make(map[string]bool, len(svc.Admins)),
		handlers: builtins(),
	}
	for _, id := range svc.Admins {
		r.admins[id] = true
	}
	return r
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string {
	return r.prefix
}

// IsCommand reports whether content invokes a registered command. Commands
// are not qualifying events and earn no XP; "!lol" is an ordinary message.
func (r *Router) IsCommand(content string) bool {
	inv, ok := Parse(content, r.prefix)
	if !ok {
		return false
	}
	_, ok = r.handlers[inv.Name]
	return ok
}

// Handle runs a text command. It reports false when in is not a registered
// command, so prefixed chatter still reaches the qualifying path.
func (r *Router) Handle(in chat.Inbound) (Reply, bool) {
	inv, ok := Parse(in.Content, r.prefix)
	if !ok {
		return Reply{}, false
	}
	h, ok := r.handlers[inv.Name]
	if !ok {
		slog.Debug("unregistered command name", "command", inv.Name, "user", in.AuthorID)
		return Reply{}, false
	}
	slog.Debug("command", "command", inv.Name, "user", in.AuthorID, "channel", in.ChannelID)
	return h.run(r, in, inv), true
}

// HandleInteraction runs a component interaction (button click).
func (r *Router) HandleInteraction(in chat.Inbound) Reply {
	id, err := ParseCustomID(in.CustomID)
	if err != nil {
		slog.Debug("ignoring interaction", "custom_id", in.CustomID, "error", err)
		return Reply{}
	}
	switch id.Kind {
	case customGiveaway:
		return r.joinGiveaway(in.AuthorID, id.ID)
	case customTrivia:
		return r.answerTrivia(in.AuthorID, id.ID, id.Index)
	}
	return Reply{}
}

func (r *Router) isAdmin(userID string) bool {
	return r.admins[userID]
}

// Commands returns the registered command names, sorted.
func (r *Router) Commands() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// targetUser picks the first mentioned user, or the first argument if it
// is a mention or id, or the author.
func targetUser(in chat.Inbound, inv Invocation) string {
	if len(in.Mentions) > 0 {
		return in.Mentions[0]
	}
	if len(inv.Args) > 0 {
		if id, ok := UserFromMention(inv.Args[0]); ok {
			return id
		}
	}
	return in.AuthorID
}

func (r *Router) help() Reply {
	groups := map[string][]string{}
	var order []string
	for _, name := range r.Commands() {
		h := r.handlers[name]
		if _, seen := groups[h.group]; !seen {
			order = append(order, h.group)
		}
		groups[h.group] = append(groups[h.group], "`"+r.prefix+h.usage+"` - "+h.help)
	}
	sort.Strings(order)

	embed := &chat.Embed{
		Title:       "📚 Commands",
		Description: "Chat normally to earn XP.",
		Color:       chat.ColorInfo,
	}
	for _, g := range order {
		embed.Fields = append(embed.Fields, chat.Field{Name: g, Value: strings.Join(groups[g], "\n")})
	}
	return say(chat.Message{Embed: embed})
}
