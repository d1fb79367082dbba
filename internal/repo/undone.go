package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
)

// UndoSale deletes s by id and marks its message undone in one transaction.
// It reports false, and marks nothing, when the row was already gone.
func UndoSale(ctx context.Context, db *gorm.DB, s *domain.Sale, at time.Time) (bool, error) {
	var deleted bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := DeleteSaleByID(ctx, tx, s.ID)
		if err != nil || !ok {
			return err
		}
		if err := MarkUndone(ctx, tx, s.MessageID, s.UserID, s.ID, at); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// MarkUndone records messageID as undone. Marking twice keeps the first mark.
func MarkUndone(ctx context.Context, db *gorm.DB, messageID, userID string, saleID uint64, at time.Time) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(&domain.UndoneMessage{
			MessageID: messageID,
			UserID:    userID,
			SaleID:    saleID,
			UndoneAt:  at.UTC(),
		}).Error
}

// IsUndone reports whether messageID's sale was removed by undo.
func IsUndone(ctx context.Context, db *gorm.DB, messageID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.UndoneMessage{}).
		Where("message_id = ?", messageID).
		Count(&n).Error
	return n > 0, err
}
