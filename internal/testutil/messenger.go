// Package testutil provides fakes shared by the engine, harness and CLI
// tests.
package testutil

import (
	"context"
	"sync"

	"github.com/roach88/guildkeeper/internal/chat"
)

// Sent is one message handed to the Messenger.
type Sent struct {
	ChannelID string
	Message   chat.Message
}

// Reaction is one reaction handed to the Messenger.
type Reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// Messenger records outbound traffic instead of talking to a platform.
//
// Thread-safety: all methods are safe for concurrent use.
type Messenger struct {
	mu        sync.Mutex
	sent      []Sent
	reactions []Reaction
	fail      error
}

// NewMessenger creates an empty recording messenger.
func NewMessenger() *Messenger {
	return &Messenger{}
}

// FailWith makes every later Send and React return err. A nil err restores
// normal behaviour.
func (m *Messenger) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Send implements chat.Messenger.
func (m *Messenger) Send(_ context.Context, channelID string, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, Sent{ChannelID: channelID, Message: msg})
	return nil
}

// React implements chat.Messenger.
func (m *Messenger) React(_ context.Context, channelID, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.reactions = append(m.reactions, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

// Sent returns a copy of every recorded message.
func (m *Messenger) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// Reactions returns a copy of every recorded reaction.
func (m *Messenger) Reactions() []Reaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Reaction(nil), m.reactions...)
}

// Texts returns the visible text of each sent message: its content, or the
// embed title when it has no content.
func (m *Messenger) Texts() []string {
	sent := m.Sent()
	out := make([]string, 0, len(sent))
	for _, s := range sent {
		out = append(out, Summary(s.Message))
	}
	return out
}

// Reset forgets everything recorded so far.
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.reactions = nil
}

// Summary is the one-line text of a message.
func Summary(msg chat.Message) string {
	if msg.Content != "" || msg.Embed == nil {
		return msg.Content
	}
	if msg.Embed.Title != "" {
		return msg.Embed.Title
	}
	return msg.Embed.Description
}
