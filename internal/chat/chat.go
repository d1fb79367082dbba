// Package chat is the chat-facing surface of the bot: the on-demand commands
// shared by every platform and the contract a platform adapter implements.
package chat

import (
	"context"

	"github.com/tbourn/sales-leaderboard-bot/internal/services"
)

// Events receives ledger-relevant message events from an adapter.
// *services.LedgerService implements it.
type Events interface {
	MessageCreated(ctx context.Context, m services.Message) (services.Action, error)
	MessageEdited(ctx context.Context, e services.MessageEdit) (services.Action, error)
}

// Platform is a chat network connection. Besides delivering events it is
// the acknowledger, member directory and summary poster for its network.
type Platform interface {
	services.Acknowledger
	services.MemberDirectory
	services.Poster

	// Name identifies the platform in logs.
	Name() string

	// Run connects and dispatches events until ctx is cancelled.
	Run(ctx context.Context, events Events, cmds *Commands) error
}
