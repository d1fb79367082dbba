// Package repo implements the data persistence layer for the sales ledger,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
)

// SalesStats returns aggregate metadata for sales recorded in [start, end):
// the number of rows and the greatest UpdatedAt among them.
//
// When the window is empty, count is 0 and maxUpdatedAt is nil. Deleting a
// sale lowers the count, editing one moves maxUpdatedAt, so the pair changes
// whenever the window's leaderboard can change.
func SalesStats(ctx context.Context, db *gorm.DB, start, end time.Time) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).
		Model(&domain.Sale{}).
		Where("recorded_at >= ? AND recorded_at < ?", start.UTC(), end.UTC())

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
