// Package handlers exposes the ledger over HTTP:
//
//   - GET  {base}/leaderboard?day=0&community=<id>  ranked totals, weak ETag
//   - GET  {base}/totals?day=-1                     grand total of a day
//   - POST {base}/undo                              X-User-ID, Idempotency-Key
//
// Handlers are transport-thin: they parse input, call the services and
// translate results and sentinel errors into responses.
package handlers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
	"github.com/tbourn/sales-leaderboard-bot/internal/window"
)

// BoardService answers aggregation queries.
type BoardService interface {
	Window(offset int) (window.Window, error)
	Board(ctx context.Context, w window.Window) (services.Board, error)
	GrandTotal(ctx context.Context, w window.Window) (decimal.Decimal, error)
	Version(ctx context.Context, w window.Window) (int64, *time.Time, error)
}

// UndoService removes a user's latest sale of today.
type UndoService interface {
	Undo(ctx context.Context, userID string) (*domain.Sale, error)
}

// Handlers groups the ledger endpoints.
type Handlers struct {
	boards BoardService
	ledger UndoService
	names  services.MemberDirectory

	// Idempotency records for POST /undo; nil disables replay storage.
	idemDB  *gorm.DB
	idemTTL time.Duration
}

// New constructs Handlers. names may be nil, in which case standings carry
// fallback display names.
func New(boards BoardService, ledger UndoService, names services.MemberDirectory) *Handlers {
	return &Handlers{boards: boards, ledger: ledger, names: names}
}

// WithIdempotency stores undo outcomes in db for ttl so that retried requests
// with the same Idempotency-Key replay instead of removing another sale.
func (h *Handlers) WithIdempotency(db *gorm.DB, ttl time.Duration) *Handlers {
	h.idemDB, h.idemTTL = db, ttl
	return h
}
