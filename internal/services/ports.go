package services

import (
	"context"

	"github.com/tbourn/sales-leaderboard-bot/internal/render"
)

// Message is a chat message as delivered by a platform adapter.
type Message struct {
	CommunityID string // guild / group; empty for direct messages
	ChannelID   string
	MessageID   string
	AuthorID    string
	AuthorIsBot bool
	Text        string
}

// tracked reports whether the message may affect the ledger at all.
func (m Message) tracked() bool {
	return !m.AuthorIsBot && m.CommunityID != "" && m.MessageID != ""
}

// MessageEdit is an edited message. Before holds the previous text when the
// platform still has it; nil means unknown.
type MessageEdit struct {
	Message
	Before *string
}

// Acknowledger marks a message as recorded (e.g. with a reaction).
type Acknowledger interface {
	Acknowledge(ctx context.Context, channelID, messageID string) error
}

// MemberDirectory resolves display names within a community.
type MemberDirectory interface {
	DisplayName(ctx context.Context, communityID, userID string) (string, bool)
}

// Poster publishes the daily summary.
type Poster interface {
	// Resolve returns the community owning channelID, or
	// ErrDestinationNotFound.
	Resolve(ctx context.Context, channelID string) (communityID string, err error)
	PostText(ctx context.Context, channelID, text string) error
	PostLeaderboard(ctx context.Context, channelID string, card render.Card) error
}
