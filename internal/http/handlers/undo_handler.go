// Undo HTTP handler.
//
// POST {base}/undo removes the caller's latest sale of today. The caller is
// identified by X-User-ID; the router mounts it behind the API_TOKEN bearer
// check. With an Idempotency-Key, the outcome is stored and
// a retry with the same key replays it (Idempotency-Replayed: true) instead
// of removing a second sale.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/sales-leaderboard-bot/internal/http/middleware"
	"github.com/tbourn/sales-leaderboard-bot/internal/money"
	"github.com/tbourn/sales-leaderboard-bot/internal/render"
	"github.com/tbourn/sales-leaderboard-bot/internal/repo"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
)

// UndoScope namespaces idempotency keys of the undo endpoint.
const UndoScope = "undo"

// UndoResponse is the body of a successful undo.
type UndoResponse struct {
	SaleID    uint64 `json:"sale_id"`
	Amount    string `json:"amount"`
	Formatted string `json:"formatted"`
	Message   string `json:"message"`
}

// Undo handles POST /undo.
func (h *Handlers) Undo(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header is required")
		return
	}
	key, hasKey := middleware.GetIdempotencyKey(c)
	storing := hasKey && h.idemDB != nil

	if storing && middleware.IsReplay(c) {
		rec, err := repo.GetIdempotency(ctx, h.idemDB, uid, UndoScope, key, time.Now().UTC())
		if err == nil {
			c.Header("Idempotency-Replayed", "true")
			writeUndo(c, rec.Status, rec.SaleID, rec.Amount)
			return
		}
		// Expired between validation and now: run normally.
	}

	out := repo.IdempotencyOutcome{Status: http.StatusOK}
	sale, err := h.ledger.Undo(ctx, uid)
	switch {
	case errors.Is(err, services.ErrNothingToUndo):
		out.Status = http.StatusNotFound
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUndoFailed, err.Error())
		return
	default:
		out.SaleID, out.Amount = sale.ID, sale.Amount
	}

	if storing {
		if _, err := repo.CreateIdempotency(ctx, h.idemDB, uid, UndoScope, key, out, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
		}
	}
	writeUndo(c, out.Status, out.SaleID, out.Amount)
}

func writeUndo(c *gin.Context, status int, saleID uint64, amount decimal.Decimal) {
	if status == http.StatusNotFound {
		fail(c, http.StatusNotFound, ErrCodeNothingToUndo, render.NothingToUndo)
		return
	}
	ok(c, status, UndoResponse{
		SaleID:    saleID,
		Amount:    amount.StringFixed(2),
		Formatted: money.Format(amount),
		Message:   render.UndoDone(amount),
	})
}

// IdempotencyLookup reports stored, unexpired outcomes in db for the
// idempotency middleware.
func IdempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}
