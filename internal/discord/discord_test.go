package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/guildkeeper/internal/chat"
)

type fakeSession struct {
	sends     map[string][]*discordgo.MessageSend
	reactions []string
	responses []*discordgo.InteractionResponse
	err       error
}

func newFakeSession() *fakeSession {
	return &fakeSession{sends: map[string][]*discordgo.MessageSend{}}
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sends[channelID] = append(f.sends[channelID], data)
	return &discordgo.Message{ID: "sent", ChannelID: channelID}, nil
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emoji string, _ ...discordgo.RequestOption) error {
	if f.err != nil {
		return f.err
	}
	f.reactions = append(f.reactions, channelID+"/"+messageID+"/"+emoji)
	return nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return f.err
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New("", func(chat.Inbound) {})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFromMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	in, ok := FromMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   "hi <@u2>",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice"},
		Mentions:  []*discordgo.User{{ID: "u2"}, nil},
	}}, "self")
	require.True(t, ok)
	assert.Equal(t, chat.Inbound{
		Kind:       chat.KindMessage,
		ID:         "m1",
		AuthorID:   "u1",
		AuthorName: "Alice",
		ChannelID:  "c1",
		GuildID:    "g1",
		Content:    "hi <@u2>",
		Mentions:   []string{"u2"},
		Timestamp:  ts,
	}, in)
}

func TestFromMessage_NoAuthor(t *testing.T) {
	_, ok := FromMessage(&discordgo.MessageCreate{Message: &discordgo.Message{ID: "m1"}}, "self")
	assert.False(t, ok)
	_, ok = FromMessage(nil, "self")
	assert.False(t, ok)
}

func TestFromMessage_Bot(t *testing.T) {
	in, ok := FromMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		Author: &discordgo.User{ID: "b1", Username: "bot", Bot: true},
	}}, "self")
	require.True(t, ok)
	assert.True(t, in.AuthorBot)
	assert.Equal(t, "bot", in.AuthorName)
}

func TestFromMessage_ReplyToSelf(t *testing.T) {
	in, ok := FromMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID:     "m2",
		Author: &discordgo.User{ID: "u1"},
		ReferencedMessage: &discordgo.Message{
			ID:     "m1",
			Author: &discordgo.User{ID: "self", Bot: true},
			Embeds: []*discordgo.MessageEmbed{{Description: "Go is a language."}},
		},
	}}, "self")
	require.True(t, ok)
	assert.True(t, in.RepliesToSelf())
	assert.Equal(t, &chat.Reference{MessageID: "m1", FromSelf: true, Content: "Go is a language."}, in.Reference)
}

func TestFromMessage_ReplyToOthers(t *testing.T) {
	in, ok := FromMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		Author:            &discordgo.User{ID: "u1"},
		ReferencedMessage: &discordgo.Message{ID: "m1", Author: &discordgo.User{ID: "u2"}, Content: "hey"},
	}}, "self")
	require.True(t, ok)
	assert.False(t, in.RepliesToSelf())
	assert.Equal(t, "hey", in.Reference.Content)

	in, ok = FromMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		Author:            &discordgo.User{ID: "u1"},
		ReferencedMessage: &discordgo.Message{ID: "m1", Author: &discordgo.User{ID: "self"}},
	}}, "")
	require.True(t, ok)
	assert.False(t, in.RepliesToSelf(), "unknown self id never matches")

	in, ok = FromMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		Author:           &discordgo.User{ID: "u1"},
		MessageReference: &discordgo.MessageReference{MessageID: "m9"},
	}}, "self")
	require.True(t, ok)
	assert.Equal(t, &chat.Reference{MessageID: "m9"}, in.Reference)
}

func TestFromInteraction(t *testing.T) {
	in, ok := FromInteraction(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i1",
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "c1",
		GuildID:   "g1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: "giveaway:g-1"},
	}})
	require.True(t, ok)
	assert.Equal(t, chat.KindInteraction, in.Kind)
	assert.Equal(t, "u1", in.AuthorID)
	assert.Equal(t, "giveaway:g-1", in.CustomID)
}

func TestFromInteraction_DirectUser(t *testing.T) {
	in, ok := FromInteraction(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		User: &discordgo.User{ID: "u9", Username: "dm"},
		Data: discordgo.MessageComponentInteractionData{CustomID: "trivia:r-1:2"},
	}})
	require.True(t, ok)
	assert.Equal(t, "u9", in.AuthorID)
}

func TestFromInteraction_IgnoresCommands(t *testing.T) {
	_, ok := FromInteraction(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u1"},
	}})
	assert.False(t, ok)
}

func TestToSend_Embed(t *testing.T) {
	send := ToSend("c1", chat.Message{
		ReplyTo: "m1",
		Embed: &chat.Embed{
			Title:       "🎁 Giveaway: Nitro",
			Description: "winner",
			Color:       chat.ColorSuccess,
			Fields:      []chat.Field{{Name: "Entrants", Value: "3", Inline: true}},
			Footer:      "ID g-1",
		},
	})

	require.Len(t, send.Embeds, 1)
	e := send.Embeds[0]
	assert.Equal(t, "🎁 Giveaway: Nitro", e.Title)
	assert.Equal(t, chat.ColorSuccess, e.Color)
	require.Len(t, e.Fields, 1)
	assert.True(t, e.Fields[0].Inline)
	assert.Equal(t, "ID g-1", e.Footer.Text)
	assert.Equal(t, &discordgo.MessageReference{MessageID: "m1", ChannelID: "c1"}, send.Reference)
}

func TestToSend_ButtonRows(t *testing.T) {
	buttons := make([]chat.Button, 7)
	for i := range buttons {
		buttons[i] = chat.Button{Label: "b", CustomID: "trivia:r:" + string(rune('0'+i)), Style: chat.ButtonSecondary}
	}
	send := ToSend("c1", chat.Message{Content: "pick", Buttons: buttons})

	require.Len(t, send.Components, 2)
	first := send.Components[0].(discordgo.ActionsRow)
	second := send.Components[1].(discordgo.ActionsRow)
	assert.Len(t, first.Components, 5)
	assert.Len(t, second.Components, 2)
	assert.Equal(t, discordgo.SecondaryButton, first.Components[0].(discordgo.Button).Style)
	assert.Nil(t, send.Reference)
	assert.Empty(t, send.Embeds)
}

func TestButtonStyle(t *testing.T) {
	assert.Equal(t, discordgo.PrimaryButton, buttonStyle(chat.ButtonPrimary))
	assert.Equal(t, discordgo.SuccessButton, buttonStyle(chat.ButtonSuccess))
	assert.Equal(t, discordgo.DangerButton, buttonStyle(chat.ButtonDanger))
}

func TestMessenger(t *testing.T) {
	fs := newFakeSession()
	m := &Messenger{s: fs}
	ctx := context.Background()

	require.NoError(t, m.Send(ctx, "c1", chat.Text("hello")))
	require.NoError(t, m.React(ctx, "c1", "m1", chat.ReactAccepted))

	require.Len(t, fs.sends["c1"], 1)
	assert.Equal(t, "hello", fs.sends["c1"][0].Content)
	assert.Equal(t, []string{"c1/m1/✅"}, fs.reactions)
}

func TestMessenger_WrapsErrors(t *testing.T) {
	fs := newFakeSession()
	fs.err = errors.New("HTTP 403 Forbidden")
	m := &Messenger{s: fs}

	err := m.Send(context.Background(), "c1", chat.Text("x"))
	assert.ErrorIs(t, err, fs.err)
	assert.Contains(t, err.Error(), "c1")

	err = m.React(context.Background(), "c1", "m1", "x")
	assert.ErrorIs(t, err, fs.err)
}

func TestAcknowledge(t *testing.T) {
	fs := newFakeSession()
	require.NoError(t, Acknowledge(context.Background(), fs, &discordgo.Interaction{ID: "i1"}))
	require.Len(t, fs.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, fs.responses[0].Type)
}
