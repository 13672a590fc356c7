package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/roach88/guildkeeper/internal/chat"
)

// maxButtonsPerRow is Discord's limit for one action row.
const maxButtonsPerRow = 5

// FromMessage translates a gateway message. selfID is the bot's user id and
// marks replies to the bot's own messages. ok is false for events that
// carry no author.
func FromMessage(m *discordgo.MessageCreate, selfID string) (chat.Inbound, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return chat.Inbound{}, false
	}
	mentions := make([]string, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		if u != nil {
			mentions = append(mentions, u.ID)
		}
	}
	return chat.Inbound{
		Kind:       chat.KindMessage,
		ID:         m.ID,
		AuthorID:   m.Author.ID,
		AuthorName: displayName(m.Author),
		AuthorBot:  m.Author.Bot,
		ChannelID:  m.ChannelID,
		GuildID:    m.GuildID,
		Content:    m.Content,
		Mentions:   mentions,
		Reference:  reference(m.Message, selfID),
		Timestamp:  m.Timestamp,
	}, true
}

// reference reads the replied-to message. The gateway resolves it into
// ReferencedMessage; when it could not, only the id is known.
func reference(m *discordgo.Message, selfID string) *chat.Reference {
	if ref := m.ReferencedMessage; ref != nil {
		return &chat.Reference{
			MessageID: ref.ID,
			FromSelf:  selfID != "" && ref.Author != nil && ref.Author.ID == selfID,
			Content:   messageText(ref),
		}
	}
	if m.MessageReference != nil && m.MessageReference.MessageID != "" {
		return &chat.Reference{MessageID: m.MessageReference.MessageID}
	}
	return nil
}

// messageText is a message's content, or the description of its first
// embed for embed-only messages such as assistant replies.
func messageText(m *discordgo.Message) string {
	if m.Content != "" {
		return m.Content
	}
	for _, e := range m.Embeds {
		if e != nil && e.Description != "" {
			return e.Description
		}
	}
	return ""
}

// FromInteraction translates a button click. Other interaction types are
// not handled.
func FromInteraction(i *discordgo.InteractionCreate) (chat.Inbound, bool) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return chat.Inbound{}, false
	}
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return chat.Inbound{}, false
	}
	return chat.Inbound{
		Kind:       chat.KindInteraction,
		ID:         i.ID,
		AuthorID:   user.ID,
		AuthorName: displayName(user),
		AuthorBot:  user.Bot,
		ChannelID:  i.ChannelID,
		GuildID:    i.GuildID,
		CustomID:   i.MessageComponentData().CustomID,
	}, true
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// ToSend builds the REST payload for a message.
func ToSend(channelID string, msg chat.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
	}
	if len(msg.Buttons) > 0 {
		send.Components = toRows(msg.Buttons)
	}
	if msg.ReplyTo != "" {
		send.Reference = &discordgo.MessageReference{MessageID: msg.ReplyTo, ChannelID: channelID}
	}
	return send
}

func toEmbed(e *chat.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return out
}

func toRows(buttons []chat.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += maxButtonsPerRow {
		end := min(start+maxButtonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				CustomID: b.CustomID,
				Style:    buttonStyle(b.Style),
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func buttonStyle(s chat.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case chat.ButtonSuccess:
		return discordgo.SuccessButton
	case chat.ButtonDanger:
		return discordgo.DangerButton
	case chat.ButtonSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}
