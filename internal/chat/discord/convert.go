package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/tbourn/sales-leaderboard-bot/internal/chat"
	"github.com/tbourn/sales-leaderboard-bot/internal/render"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
	"github.com/tbourn/sales-leaderboard-bot/internal/sysutil"
)

func applicationCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: chat.CommandLeaderboard, Description: chat.DescLeaderboard},
		{Name: chat.CommandUndo, Description: chat.DescUndo},
	}
}

// toMessage converts a gateway message. Messages without an author are
// skipped.
func toMessage(m *discordgo.Message) (services.Message, bool) {
	if m == nil || m.Author == nil {
		return services.Message{}, false
	}
	return services.Message{
		CommunityID: m.GuildID,
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		AuthorID:    m.Author.ID,
		AuthorIsBot: m.Author.Bot,
		Text:        m.Content,
	}, true
}

// toEdit converts an update event. Updates without an edit timestamp are
// link-preview or pin changes, not content edits. BeforeUpdate is only set
// when the state cache still held the message.
func toEdit(u *discordgo.MessageUpdate) (services.MessageEdit, bool) {
	if u == nil || u.Message == nil || u.EditedTimestamp == nil {
		return services.MessageEdit{}, false
	}
	msg, ok := toMessage(u.Message)
	if !ok {
		return services.MessageEdit{}, false
	}
	e := services.MessageEdit{Message: msg}
	if u.BeforeUpdate != nil {
		before := u.BeforeUpdate.Content
		e.Before = &before
	}
	return e, true
}

func interactionUser(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func memberName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.User == nil {
		return m.Nick
	}
	return sysutil.FirstNonEmpty(m.Nick, m.User.GlobalName, m.User.Username)
}

func embed(card render.Card) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       card.Title,
		Description: card.Markdown(),
		Color:       card.Color,
	}
	for _, f := range card.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return e
}
