package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIdempotency_Migration_AndUniqueKey(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("expected unique index ux_user_scope_key")
	}

	now := time.Now().UTC()
	rec := &Idempotency{
		ID:        "i1",
		UserID:    "u1",
		Scope:     "undo",
		Key:       "k1",
		SaleID:    7,
		Amount:    decimal.RequireFromString("12.50"),
		Status:    200,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Same key in another scope is fine.
	other := *rec
	other.ID, other.Scope = "i2", "other"
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("insert other scope: %v", err)
	}

	dup := *rec
	dup.ID = "i3"
	err := db.Create(&dup).Error
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "unique") {
		t.Fatalf("expected unique violation, got %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "i1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.SaleID != 7 || !got.Amount.Equal(decimal.RequireFromString("12.5")) || got.Status != 200 {
		t.Fatalf("unexpected row: %+v", got)
	}
}
