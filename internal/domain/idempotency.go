// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Idempotency stores the outcome of a previously processed unsafe request,
// keyed by (user_id, scope, key). A retried undo with the same key replays the
// stored outcome instead of removing another sale.
type Idempotency struct {
	ID        string          `gorm:"type:varchar(36);primaryKey"`
	UserID    string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope     string          `gorm:"type:varchar(32);not null;uniqueIndex:ux_user_scope_key,priority:2"`
	Key       string          `gorm:"type:varchar(200);not null;uniqueIndex:ux_user_scope_key,priority:3"`
	SaleID    uint64          `gorm:"not null;default:0"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	Status    int             `gorm:"not null"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time       `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
