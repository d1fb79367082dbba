// Package services – LeaderboardService
//
// LeaderboardService answers aggregation queries over a day window: ranked
// per-user totals and the grand total. Reads run concurrently with ledger
// writes; read-committed consistency is enough since every call recomputes
// from the store.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/sales-leaderboard-bot/internal/render"
	"github.com/tbourn/sales-leaderboard-bot/internal/repo"
	"github.com/tbourn/sales-leaderboard-bot/internal/window"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxDayOffset is how many days back Day accepts.
const MaxDayOffset = 366

// Standing is one ranked leaderboard entry. Rank is 1-based.
type Standing struct {
	Rank   int             `json:"rank"`
	UserID string          `json:"user_id"`
	Total  decimal.Decimal `json:"total"`
}

// Board is a leaderboard together with its window and grand total.
type Board struct {
	Window    window.Window
	Standings []Standing
	Total     decimal.Decimal
}

// LeaderboardService computes rankings and totals.
type LeaderboardService struct {
	DB           *gorm.DB
	Location     *time.Location
	Now          func() time.Time
	StoreTimeout time.Duration
}

// NewLeaderboardService constructs a LeaderboardService for loc.
func NewLeaderboardService(db *gorm.DB, loc *time.Location) *LeaderboardService {
	return &LeaderboardService{DB: db, Location: loc, Now: time.Now, StoreTimeout: DefaultStoreTimeout}
}

// Window returns the local day at offset (0 today, -1 yesterday).
func (s *LeaderboardService) Window(offset int) (window.Window, error) {
	if offset > 0 || offset < -MaxDayOffset {
		return window.Window{}, ErrInvalidDayOffset
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return window.Day(now, offset, s.Location), nil
}

// Leaderboard ranks users by their total in w, highest first.
func (s *LeaderboardService) Leaderboard(ctx context.Context, w window.Window) ([]Standing, error) {
	tr := otel.Tracer("services/LeaderboardService")
	ctx, span := tr.Start(ctx, "Leaderboard", trace.WithAttributes(windowAttrs(w)...))
	defer span.End()

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	totals, err := repo.SumSalesByUser(ctx, s.DB, w.Start, w.End)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sum by user: %w", err)
	}
	out := make([]Standing, 0, len(totals))
	for i, t := range totals {
		out = append(out, Standing{Rank: i + 1, UserID: t.UserID, Total: t.Total})
	}
	span.SetAttributes(attribute.Int("standings", len(out)))
	return out, nil
}

// GrandTotal sums every sale recorded in w.
func (s *LeaderboardService) GrandTotal(ctx context.Context, w window.Window) (decimal.Decimal, error) {
	tr := otel.Tracer("services/LeaderboardService")
	ctx, span := tr.Start(ctx, "GrandTotal", trace.WithAttributes(windowAttrs(w)...))
	defer span.End()

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	total, err := repo.SumSalesTotal(ctx, s.DB, w.Start, w.End)
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, fmt.Errorf("sum total: %w", err)
	}
	return total, nil
}

// Day computes the board for the local day at offset.
func (s *LeaderboardService) Day(ctx context.Context, offset int) (Board, error) {
	w, err := s.Window(offset)
	if err != nil {
		return Board{}, err
	}
	return s.Board(ctx, w)
}

// Board computes standings and grand total for w.
func (s *LeaderboardService) Board(ctx context.Context, w window.Window) (Board, error) {
	standings, err := s.Leaderboard(ctx, w)
	if err != nil {
		return Board{}, err
	}
	total, err := s.GrandTotal(ctx, w)
	if err != nil {
		return Board{}, err
	}
	return Board{Window: w, Standings: standings, Total: total}, nil
}

// Version returns cache-validator inputs for w: row count and latest change.
func (s *LeaderboardService) Version(ctx context.Context, w window.Window) (int64, *time.Time, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return repo.SalesStats(ctx, s.DB, w.Start, w.End)
}

// Lines resolves display names for standings. Unresolved users get
// render.FallbackName. dir may be nil.
func Lines(ctx context.Context, dir MemberDirectory, communityID string, standings []Standing) []render.Line {
	out := make([]render.Line, 0, len(standings))
	for _, st := range standings {
		name := ""
		if dir != nil {
			if n, ok := dir.DisplayName(ctx, communityID, st.UserID); ok {
				name = n
			}
		}
		if name == "" {
			name = render.FallbackName(st.UserID)
		}
		out = append(out, render.Line{Rank: st.Rank, Name: name, Total: st.Total})
	}
	return out
}

func (s *LeaderboardService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.StoreTimeout
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

func windowAttrs(w window.Window) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("window.start", w.Start.Format(time.RFC3339)),
		attribute.String("window.end", w.End.Format(time.RFC3339)),
	}
}
