// Package chat defines the boundary between the engagement engine and the
// messaging platform: the inbound event shape and the outbound capability.
//
// Nothing here knows about Discord. The discord package translates gateway
// events into Inbound and implements Messenger; the harness does the same
// from YAML scenarios.
package chat

import (
	"context"
	"time"
)

// Kind distinguishes inbound event types.
type Kind string

const (
	// KindMessage is a plain chat message.
	KindMessage Kind = "message"
	// KindInteraction is a component interaction (button click).
	KindInteraction Kind = "interaction"
)

// Inbound is one event from the messaging platform.
type Inbound struct {
	Kind       Kind
	ID         string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	ChannelID  string
	GuildID    string
	Content    string
	// Mentions are the user ids mentioned in Content.
	Mentions []string
	// CustomID is the component id of an interaction.
	CustomID string
	// Reference is the message this one replies to, if any.
	Reference *Reference
	Timestamp time.Time
}

// RepliesToSelf reports whether in is a reply to one of the bot's own
// messages.
func (in Inbound) RepliesToSelf() bool {
	return in.Reference != nil && in.Reference.FromSelf
}

// Reference describes a replied-to message.
type Reference struct {
	MessageID string
	// FromSelf is set when the bot posted the referenced message.
	FromSelf bool
	Content  string
}

// Message is outbound content. At least one of Content and Embed is set.
type Message struct {
	Content string
	Embed   *Embed
	Buttons []Button
	// ReplyTo is the id of the message being answered, if any.
	ReplyTo string
}

// Text returns a plain-text message.
func Text(s string) Message {
	return Message{Content: s}
}

// Embed is structured rich content.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
}

// Field is one embed field.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// ButtonStyle selects how a button is drawn.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable component. CustomID comes back on the resulting
// interaction event.
type Button struct {
	Label    string
	CustomID string
	Style    ButtonStyle
}

// Messenger is the outbound capability. Delivery failures are returned to
// the caller, which logs them; the engine never retries.
type Messenger interface {
	Send(ctx context.Context, channelID string, msg Message) error
	React(ctx context.Context, channelID, messageID, emoji string) error
}

// Embed colours used across the bot.
const (
	ColorInfo    = 0x5865F2
	ColorSuccess = 0x57F287
	ColorWarning = 0xFEE75C
	ColorError   = 0xED4245
)

// Reaction markers for the counting game.
const (
	ReactAccepted = "✅"
	ReactRejected = "❌"
)

// Mention formats a user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}
