// Package repo implements the data persistence layer for the sales ledger,
// backed by GORM. This file provides the ledger store: one row per chat
// message that carried a positive amount.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. Every mutation is a single statement, so
// it is atomic on its own and committed before the function returns.
//
// Error semantics:
//   - Lookups of a missing sale return ErrNotFound.
//   - Mutations of a missing sale are no-ops and report changed=false.
//   - Other DB errors are returned as-is.
//
// Functions:
//
//   - InsertSaleIfAbsent(ctx, db, sale) -> inserted, error
//   - UpdateSaleAmount(ctx, db, messageID, amount) -> changed, error
//   - DeleteSaleByMessage(ctx, db, messageID) -> changed, error
//   - DeleteSaleByID(ctx, db, id) -> changed, error
//   - GetSaleByMessage / GetSaleByID -> *domain.Sale, error
//   - SumSalesByUser(ctx, db, start, end) -> []domain.UserTotal, error
//   - SumSalesTotal(ctx, db, start, end) -> decimal.Decimal, error
//   - LatestSaleByUserInWindow(ctx, db, userID, start, end) -> *domain.Sale, error
package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// InsertSaleIfAbsent inserts s unless a sale for s.MessageID already exists.
// A conflicting insert is not an error: it reports inserted=false and leaves
// the stored row (and its amount) untouched. On insert, s.ID is populated.
func InsertSaleIfAbsent(ctx context.Context, db *gorm.DB, s *domain.Sale) (bool, error) {
	s.Amount = s.Amount.Round(2)
	s.RecordedAt = s.RecordedAt.UTC()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.RecordedAt
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(s)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateSaleAmount sets the amount of the sale for messageID. RecordedAt is
// never touched.
func UpdateSaleAmount(ctx context.Context, db *gorm.DB, messageID string, amount decimal.Decimal) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Sale{}).
		Where("message_id = ?", messageID).
		Updates(map[string]any{
			"amount":     amount.Round(2),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// DeleteSaleByMessage removes the sale for messageID if present.
func DeleteSaleByMessage(ctx context.Context, db *gorm.DB, messageID string) (bool, error) {
	res := db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Delete(&domain.Sale{})
	return res.RowsAffected > 0, res.Error
}

// DeleteSaleByID removes the sale with the given surrogate key if present.
func DeleteSaleByID(ctx context.Context, db *gorm.DB, id uint64) (bool, error) {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Sale{})
	return res.RowsAffected > 0, res.Error
}

// GetSaleByMessage fetches the sale recorded for messageID.
func GetSaleByMessage(ctx context.Context, db *gorm.DB, messageID string) (*domain.Sale, error) {
	var s domain.Sale
	if err := db.WithContext(ctx).Where("message_id = ?", messageID).Take(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSaleByID fetches a sale by surrogate key.
func GetSaleByID(ctx context.Context, db *gorm.DB, id uint64) (*domain.Sale, error) {
	var s domain.Sale
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SumSalesByUser returns per-user totals for sales recorded in [start, end),
// ordered by total descending. Equal totals are ordered by the user's first
// sale in the window (lowest id first), which keeps rankings stable between
// calls.
func SumSalesByUser(ctx context.Context, db *gorm.DB, start, end time.Time) ([]domain.UserTotal, error) {
	var rows []struct {
		UserID  string
		Total   decimal.Decimal
		FirstID uint64
	}
	err := db.WithContext(ctx).
		Model(&domain.Sale{}).
		Select("user_id, SUM(amount) AS total, MIN(id) AS first_id").
		Where("recorded_at >= ? AND recorded_at < ?", start.UTC(), end.UTC()).
		Group("user_id").
		Order("total DESC, first_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.UserTotal{UserID: r.UserID, Total: r.Total.Round(2)})
	}
	return out, nil
}

// SumSalesTotal returns the grand total of sales recorded in [start, end),
// or zero when the window is empty.
func SumSalesTotal(ctx context.Context, db *gorm.DB, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.WithContext(ctx).
		Model(&domain.Sale{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("recorded_at >= ? AND recorded_at < ?", start.UTC(), end.UTC()).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

// LatestSaleByUserInWindow returns userID's most recently recorded sale in
// [start, end). Ties on RecordedAt go to the highest id. ErrNotFound when the
// user has no sale in the window.
func LatestSaleByUserInWindow(ctx context.Context, db *gorm.DB, userID string, start, end time.Time) (*domain.Sale, error) {
	var s domain.Sale
	err := db.WithContext(ctx).
		Where("user_id = ? AND recorded_at >= ? AND recorded_at < ?", userID, start.UTC(), end.UTC()).
		Order("recorded_at DESC, id DESC").
		Limit(1).
		Take(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
