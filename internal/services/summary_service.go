// Package services – SummaryService
//
// SummaryService posts the previous local day's results: a total line and a
// final leaderboard card. It is triggered once per day by the scheduler.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/sales-leaderboard-bot/internal/render"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SummaryService produces the daily summary.
type SummaryService struct {
	Boards    *LeaderboardService
	Poster    Poster
	Directory MemberDirectory

	// ChannelID is the destination; empty disables the summary.
	ChannelID string
}

// Run posts yesterday's summary. A missing or unresolvable destination is a
// logged no-op. Store and posting failures are returned.
func (s *SummaryService) Run(ctx context.Context) error {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(attribute.String("channel.id", s.ChannelID)),
	)
	defer span.End()

	logger := log.Ctx(ctx).With().Str("component", "summary").Logger()

	if s.ChannelID == "" || s.Poster == nil {
		summaryRuns.WithLabelValues("skipped").Inc()
		logger.Debug().Msg("no summary channel configured")
		return nil
	}
	communityID, err := s.Poster.Resolve(ctx, s.ChannelID)
	if errors.Is(err, ErrDestinationNotFound) {
		summaryRuns.WithLabelValues("skipped").Inc()
		logger.Warn().Str("channel_id", s.ChannelID).Msg("summary channel not found")
		return nil
	}
	if err != nil {
		return s.fail(span, fmt.Errorf("resolve channel: %w", err))
	}

	board, err := s.Boards.Day(ctx, -1)
	if err != nil {
		return s.fail(span, err)
	}
	day := board.Window.Date()

	if err := s.Poster.PostText(ctx, s.ChannelID, render.TotalLine(day, board.Total)); err != nil {
		return s.fail(span, fmt.Errorf("post total: %w", err))
	}
	lines := Lines(ctx, s.Directory, communityID, board.Standings)
	if err := s.Poster.PostLeaderboard(ctx, s.ChannelID, render.FinalCard(day, lines, board.Total)); err != nil {
		return s.fail(span, fmt.Errorf("post leaderboard: %w", err))
	}

	summaryRuns.WithLabelValues("posted").Inc()
	logger.Info().
		Str("day", day.Format("2006-01-02")).
		Str("total", board.Total.StringFixed(2)).
		Int("standings", len(board.Standings)).
		Msg("daily summary posted")
	return nil
}

func (s *SummaryService) fail(span trace.Span, err error) error {
	summaryRuns.WithLabelValues("failed").Inc()
	span.RecordError(err)
	return err
}
