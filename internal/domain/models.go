// Package domain defines the persistence models of the sales ledger. These
// types are mapped with GORM and shared by the repository and service layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is one ledger record: the amount extracted from a single chat message,
// attributed to the message author.
//
// Fields:
//   - ID: autoincrement surrogate key; breaks ties between records created in
//     the same instant (higher is newer).
//   - CommunityID / ChannelID: where the message was posted.
//   - MessageID: the originating message; unique, so a message maps to at most
//     one sale no matter how often its events are delivered.
//   - UserID: message author.
//   - Amount: always > 0 with cent precision. A sale whose amount would drop
//     to zero is deleted instead.
//   - RecordedAt: UTC instant of the first insert. Edits change Amount only;
//     aggregation windows are evaluated against this column.
//   - UpdatedAt: last amount change, used for cache validators.
type Sale struct {
	ID          uint64          `json:"id"           gorm:"primaryKey;autoIncrement"`
	CommunityID string          `json:"community_id" gorm:"type:varchar(64);not null"`
	ChannelID   string          `json:"channel_id"   gorm:"type:varchar(64);not null"`
	MessageID   string          `json:"message_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_sales_message"`
	UserID      string          `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_sales_user_time,priority:1"`
	Amount      decimal.Decimal `json:"amount"       gorm:"type:decimal(20,2);not null"`
	RecordedAt  time.Time       `json:"recorded_at"  gorm:"not null;index:idx_sales_user_time,priority:2;index:idx_sales_time"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Sale.
func (Sale) TableName() string { return "sales" }

// UserTotal is a per-user aggregate over a time window.
type UserTotal struct {
	UserID string          `json:"user_id"`
	Total  decimal.Decimal `json:"total"`
}

// UndoneMessage marks a message whose sale was removed by undo. The ledger
// never records a sale for it again, whatever later events say.
type UndoneMessage struct {
	MessageID string    `json:"message_id" gorm:"type:varchar(64);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null"`
	SaleID    uint64    `json:"sale_id"    gorm:"not null;default:0"`
	UndoneAt  time.Time `json:"undone_at"  gorm:"not null"`
}

// TableName returns the database table name for UndoneMessage.
func (UndoneMessage) TableName() string { return "undone_messages" }
