package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/sales-leaderboard-bot/internal/chat"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
)

func botCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: chat.CommandLeaderboard, Description: chat.DescLeaderboard},
		{Command: chat.CommandUndo, Description: chat.DescUndo},
	}
}

func isGroup(c *tgbotapi.Chat) bool {
	return c != nil && (c.IsGroup() || c.IsSuperGroup())
}

// toMessage converts a group message. Private chats and anonymous senders
// are skipped; captions count as text.
func toMessage(m *tgbotapi.Message) (services.Message, bool) {
	if m == nil || m.From == nil || !isGroup(m.Chat) {
		return services.Message{}, false
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	return services.Message{
		CommunityID: chatID,
		ChannelID:   chatID,
		MessageID:   joinMessageID(m.Chat.ID, m.MessageID),
		AuthorID:    strconv.FormatInt(m.From.ID, 10),
		AuthorIsBot: m.From.IsBot,
		Text:        text,
	}, true
}

func joinMessageID(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

func splitMessageID(id string) (int64, int, error) {
	chatPart, msgPart, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed telegram message id %q", id)
	}
	chatID, err := strconv.ParseInt(chatPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed telegram message id %q: %w", id, err)
	}
	msgID, err := strconv.Atoi(msgPart)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed telegram message id %q: %w", id, err)
	}
	return chatID, msgID, nil
}

type reactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

func reaction(emoji string) []reactionType {
	return []reactionType{{Type: "emoji", Emoji: emoji}}
}

func userName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
