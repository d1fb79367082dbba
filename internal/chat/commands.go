package chat

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/sales-leaderboard-bot/internal/ratelimit"
	"github.com/tbourn/sales-leaderboard-bot/internal/render"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
)

// Command names registered on every platform.
const (
	CommandLeaderboard = "leaderboard"
	CommandUndo        = "undo"
)

// Command descriptions shown by the platforms.
const (
	DescLeaderboard = "Show today's leaderboard."
	DescUndo        = "Undo your last sale today."
)

// Replies for failed commands.
const (
	RateLimitedText = "You're sending commands too fast. Try again in a moment."
	FailedText      = "Something went wrong. Please try again later."
)

// ErrRateLimited is returned when the caller exceeded the command rate.
var ErrRateLimited = errors.New("rate limited")

// Commands implements the on-demand commands. Limiter may be nil.
type Commands struct {
	Ledger  *services.LedgerService
	Boards  *services.LeaderboardService
	Limiter *ratelimit.Limiter
}

// Leaderboard renders today's ranking for userID's request in communityID.
func (c *Commands) Leaderboard(ctx context.Context, dir services.MemberDirectory, communityID, userID string) (render.Card, error) {
	if !c.Limiter.Allow("cmd:" + userID) {
		return render.Card{}, ErrRateLimited
	}
	board, err := c.Boards.Day(ctx, 0)
	if err != nil {
		return render.Card{}, err
	}
	return render.TodayCard(services.Lines(ctx, dir, communityID, board.Standings)), nil
}

// Undo removes userID's latest sale of today and returns the reply text.
// Nothing to undo is a normal reply, not an error.
func (c *Commands) Undo(ctx context.Context, userID string) (string, error) {
	if !c.Limiter.Allow("cmd:" + userID) {
		return "", ErrRateLimited
	}
	sale, err := c.Ledger.Undo(ctx, userID)
	if errors.Is(err, services.ErrNothingToUndo) {
		return render.NothingToUndo, nil
	}
	if err != nil {
		return "", err
	}
	log.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("message_id", sale.MessageID).
		Str("amount", sale.Amount.StringFixed(2)).
		Msg("sale undone")
	return render.UndoDone(sale.Amount), nil
}

// ErrorText maps a command error to the reply shown to the user.
func ErrorText(err error) string {
	if errors.Is(err, ErrRateLimited) {
		return RateLimitedText
	}
	return FailedText
}
