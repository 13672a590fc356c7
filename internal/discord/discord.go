// Package discord connects the engine to the Discord gateway with
// discordgo. It translates gateway events into chat.Inbound and implements
// chat.Messenger over the REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/roach88/guildkeeper/internal/chat"
)

// Intents are the gateway intents the bot needs: guild messages with
// their content, and reactions.
const Intents = discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

// ErrNoToken is returned when the bot token is empty.
var ErrNoToken = errors.New("discord: token is empty")

// Handler receives translated inbound events. It runs on discordgo's event
// goroutines and must not block.
type Handler func(chat.Inbound)

// session is the subset of *discordgo.Session the adapter calls.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Gateway owns the discordgo session.
type Gateway struct {
	dg      *discordgo.Session
	handler Handler
}

// New creates a gateway for a bot token. Call Open to connect.
func New(token string, handler Handler) (*Gateway, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	dg.Identify.Intents = Intents

	g := &Gateway{dg: dg, handler: handler}
	dg.AddHandler(g.onReady)
	dg.AddHandler(g.onMessage)
	dg.AddHandler(g.onInteraction)
	return g, nil
}

// Open connects to the gateway.
func (g *Gateway) Open() error {
	if err := g.dg.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	return g.dg.Close()
}

// Messenger returns a chat.Messenger backed by this session.
func (g *Gateway) Messenger() *Messenger {
	return &Messenger{s: g.dg}
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	slog.Info("discord connected", "user", r.User.Username, "guilds", len(r.Guilds))
}

func (g *Gateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	in, ok := FromMessage(m, selfID(s))
	if !ok {
		return
	}
	g.handler(in)
}

func (g *Gateway) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	in, ok := FromInteraction(i)
	if !ok {
		return
	}
	// Discord requires an acknowledgement within three seconds; replies are
	// posted to the channel once the engine has processed the click.
	if err := Acknowledge(context.Background(), s, i.Interaction); err != nil {
		slog.Error("interaction ack failed", "interaction", i.ID, "error", err)
	}
	g.handler(in)
}

// selfID is the bot's user id once the session is ready.
func selfID(s *discordgo.Session) string {
	if s == nil || s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

// Acknowledge defers the update of the message the component belongs to.
func Acknowledge(ctx context.Context, s session, i *discordgo.Interaction) error {
	return s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
}
