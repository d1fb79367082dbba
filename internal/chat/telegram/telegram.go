// Package telegram connects the ledger to Telegram group chats through the
// Bot API long-polling interface.
//
// Telegram message ids are only unique within a chat, so ledger message ids
// are "<chat id>:<message id>". Edited messages never carry their previous
// text; the ledger falls back to the stored amount for them.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/sales-leaderboard-bot/internal/chat"
	"github.com/tbourn/sales-leaderboard-bot/internal/render"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
)

// DefaultAckEmoji marks a recorded sale. Telegram only accepts reactions
// from its fixed emoji set.
const DefaultAckEmoji = "👍"

const (
	pollTimeout  = 60 // seconds
	eventTimeout = 15 * time.Second
)

// Options configures the adapter.
type Options struct {
	Token    string
	AckEmoji string
}

// Bot is the Telegram platform adapter.
type Bot struct {
	api      *tgbotapi.BotAPI
	ackEmoji string
	log      zerolog.Logger
}

var _ chat.Platform = (*Bot)(nil)

// New authorizes the bot token against the Bot API.
func New(opts Options) (*Bot, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	emoji := opts.AckEmoji
	if emoji == "" {
		emoji = DefaultAckEmoji
	}
	return &Bot{
		api:      api,
		ackEmoji: emoji,
		log:      log.With().Str("component", "telegram").Str("bot", api.Self.UserName).Logger(),
	}, nil
}

// Name implements chat.Platform.
func (b *Bot) Name() string { return "telegram" }

// Run long-polls updates until ctx is done. Updates are handled one at a
// time in arrival order.
func (b *Bot) Run(ctx context.Context, events chat.Events, cmds *chat.Commands) error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(botCommands()...)); err != nil {
		b.log.Error().Err(err).Msg("command sync failed")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	u.AllowedUpdates = []string{"message", "edited_message"}
	updates := b.api.GetUpdatesChan(u)
	b.log.Info().Msg("polling updates")

	base := b.log.WithContext(context.WithoutCancel(ctx))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ectx, cancel := context.WithTimeout(base, eventTimeout)
			b.handleUpdate(ectx, upd, events, cmds)
			cancel()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update, events chat.Events, cmds *chat.Commands) {
	switch {
	case upd.Message != nil && upd.Message.IsCommand():
		b.handleCommand(ctx, upd.Message, cmds)
	case upd.Message != nil:
		m, ok := toMessage(upd.Message)
		if !ok {
			return
		}
		if _, err := events.MessageCreated(ctx, m); err != nil {
			b.log.Error().Err(err).Str("message_id", m.MessageID).Msg("message create failed")
		}
	case upd.EditedMessage != nil:
		m, ok := toMessage(upd.EditedMessage)
		if !ok {
			return
		}
		if _, err := events.MessageEdited(ctx, services.MessageEdit{Message: m}); err != nil {
			b.log.Error().Err(err).Str("message_id", m.MessageID).Msg("message edit failed")
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, cmds *chat.Commands) {
	if msg.From == nil || !isGroup(msg.Chat) {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)
	communityID := strconv.FormatInt(msg.Chat.ID, 10)

	var text string
	switch msg.Command() {
	case chat.CommandLeaderboard:
		card, err := cmds.Leaderboard(ctx, b, communityID, userID)
		if err != nil {
			b.log.Error().Err(err).Str("user_id", userID).Msg("leaderboard failed")
			text = chat.ErrorText(err)
			break
		}
		text = card.HTML()
	case chat.CommandUndo:
		reply, err := cmds.Undo(ctx, userID)
		if err != nil {
			b.log.Error().Err(err).Str("user_id", userID).Msg("undo failed")
			reply = chat.ErrorText(err)
		}
		text = reply
	default:
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		b.log.Warn().Err(err).Msg("reply failed")
	}
}

// Acknowledge reacts to a recorded message.
func (b *Bot) Acknowledge(_ context.Context, _, messageID string) error {
	chatID, msgID, err := splitMessageID(messageID)
	if err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", msgID)
	if err := params.AddInterface("reaction", reaction(b.ackEmoji)); err != nil {
		return err
	}
	_, err = b.api.MakeRequest("setMessageReaction", params)
	return err
}

// DisplayName resolves a chat member's name.
func (b *Bot) DisplayName(_ context.Context, communityID, userID string) (string, bool) {
	chatID, err1 := strconv.ParseInt(communityID, 10, 64)
	uid, err2 := strconv.ParseInt(userID, 10, 64)
	if err1 != nil || err2 != nil {
		return "", false
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: uid},
	})
	if err != nil {
		return "", false
	}
	name := userName(member.User)
	return name, name != ""
}

// Resolve checks that the bot can see channelID. For Telegram the channel
// is also the community.
func (b *Bot) Resolve(_ context.Context, channelID string) (string, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return "", services.ErrDestinationNotFound
	}
	_, err = b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusForbidden) {
			return "", services.ErrDestinationNotFound
		}
		return "", err
	}
	return channelID, nil
}

// PostText sends a plain message.
func (b *Bot) PostText(_ context.Context, channelID, text string) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", channelID, err)
	}
	_, err = b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// PostLeaderboard sends card as an HTML message.
func (b *Bot) PostLeaderboard(_ context.Context, channelID string, card render.Card) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", channelID, err)
	}
	out := tgbotapi.NewMessage(chatID, card.HTML())
	out.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(out)
	return err
}
