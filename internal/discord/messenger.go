package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/roach88/guildkeeper/internal/chat"
)

// Messenger implements chat.Messenger over the Discord REST API.
type Messenger struct {
	s session
}

// Send posts msg to channelID.
func (m *Messenger) Send(ctx context.Context, channelID string, msg chat.Message) error {
	if _, err := m.s.ChannelMessageSendComplex(channelID, ToSend(channelID, msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send to %s: %w", channelID, err)
	}
	return nil
}

// React adds emoji to a message.
func (m *Messenger) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := m.s.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: react on %s: %w", messageID, err)
	}
	return nil
}
