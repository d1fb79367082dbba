// Package discord connects the ledger to a Discord guild through a bot
// gateway session.
//
// Message create/update events feed the ledger, /leaderboard and /undo are
// registered as application commands, recorded messages get a reaction, and
// the daily summary is posted as a text plus an embed.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/sales-leaderboard-bot/internal/chat"
	"github.com/tbourn/sales-leaderboard-bot/internal/render"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
)

// DefaultAckEmoji marks a recorded sale.
const DefaultAckEmoji = "✅"

// stateMessages is how many messages per channel the state cache keeps so
// edits can be compared against their previous text.
const stateMessages = 500

// eventTimeout bounds the handling of one gateway event.
const eventTimeout = 15 * time.Second

// Options configures the adapter.
type Options struct {
	Token    string
	AckEmoji string
}

// Bot is the Discord platform adapter.
type Bot struct {
	session  *discordgo.Session
	ackEmoji string
	log      zerolog.Logger
}

var _ chat.Platform = (*Bot)(nil)

// New creates the session without connecting.
func New(opts Options) (*Bot, error) {
	if opts.Token == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers
	s.State.MaxMessageCount = stateMessages

	emoji := opts.AckEmoji
	if emoji == "" {
		emoji = DefaultAckEmoji
	}
	return &Bot{
		session:  s,
		ackEmoji: emoji,
		log:      log.With().Str("component", "discord").Logger(),
	}, nil
}

// Name implements chat.Platform.
func (b *Bot) Name() string { return "discord" }

// Run opens the gateway, dispatches events until ctx is done and closes the
// session.
func (b *Bot) Run(ctx context.Context, events chat.Events, cmds *chat.Commands) error {
	base := b.log.WithContext(context.WithoutCancel(ctx))

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("connected")
		if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", applicationCommands()); err != nil {
			b.log.Error().Err(err).Msg("command sync failed")
		}
	})
	b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		msg, ok := toMessage(m.Message)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(base, eventTimeout)
		defer cancel()
		if _, err := events.MessageCreated(ctx, msg); err != nil {
			b.log.Error().Err(err).Str("message_id", msg.MessageID).Msg("message create failed")
		}
	})
	b.session.AddHandler(func(_ *discordgo.Session, u *discordgo.MessageUpdate) {
		e, ok := toEdit(u)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(base, eventTimeout)
		defer cancel()
		if _, err := events.MessageEdited(ctx, e); err != nil {
			b.log.Error().Err(err).Str("message_id", e.MessageID).Msg("message edit failed")
		}
	})
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		ctx, cancel := context.WithTimeout(base, eventTimeout)
		defer cancel()
		b.handleCommand(ctx, s, i, cmds)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		b.log.Warn().Err(err).Msg("close session")
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, cmds *chat.Commands) {
	userID := interactionUser(i.Interaction)
	var data *discordgo.InteractionResponseData

	switch name := i.ApplicationCommandData().Name; name {
	case chat.CommandLeaderboard:
		card, err := cmds.Leaderboard(ctx, b, i.GuildID, userID)
		if err != nil {
			b.log.Error().Err(err).Str("user_id", userID).Msg("leaderboard failed")
			data = &discordgo.InteractionResponseData{Content: chat.ErrorText(err), Flags: discordgo.MessageFlagsEphemeral}
			break
		}
		data = &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed(card)}}
	case chat.CommandUndo:
		text, err := cmds.Undo(ctx, userID)
		if err != nil {
			b.log.Error().Err(err).Str("user_id", userID).Msg("undo failed")
			text = chat.ErrorText(err)
		}
		data = &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral}
	default:
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("interaction respond failed")
	}
}

// Acknowledge reacts to a recorded message.
func (b *Bot) Acknowledge(_ context.Context, channelID, messageID string) error {
	return b.session.MessageReactionAdd(channelID, messageID, b.ackEmoji)
}

// DisplayName resolves a guild member's name, preferring the state cache.
func (b *Bot) DisplayName(_ context.Context, guildID, userID string) (string, bool) {
	if guildID == "" {
		return "", false
	}
	m, err := b.session.State.Member(guildID, userID)
	if err != nil {
		m, err = b.session.GuildMember(guildID, userID)
		if err != nil {
			return "", false
		}
	}
	name := memberName(m)
	return name, name != ""
}

// Resolve returns the guild of channelID.
func (b *Bot) Resolve(_ context.Context, channelID string) (string, error) {
	ch, err := b.session.State.Channel(channelID)
	if err != nil {
		ch, err = b.session.Channel(channelID)
	}
	if err != nil {
		var rest *discordgo.RESTError
		if errors.As(err, &rest) && rest.Response != nil &&
			(rest.Response.StatusCode == http.StatusNotFound || rest.Response.StatusCode == http.StatusForbidden) {
			return "", services.ErrDestinationNotFound
		}
		return "", err
	}
	if ch.GuildID == "" {
		return "", services.ErrDestinationNotFound
	}
	return ch.GuildID, nil
}

// PostText sends a plain message.
func (b *Bot) PostText(_ context.Context, channelID, text string) error {
	_, err := b.session.ChannelMessageSend(channelID, text)
	return err
}

// PostLeaderboard sends card as an embed.
func (b *Bot) PostLeaderboard(_ context.Context, channelID string, card render.Card) error {
	_, err := b.session.ChannelMessageSendEmbed(channelID, embed(card))
	return err
}
