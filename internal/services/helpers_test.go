package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
	"github.com/tbourn/sales-leaderboard-bot/internal/render"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeAck struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeAck) Acknowledge(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, channelID+"/"+messageID)
	return f.err
}

type fakeDir map[string]string

func (d fakeDir) DisplayName(_ context.Context, _ string, userID string) (string, bool) {
	n, ok := d[userID]
	return n, ok
}

type fakePoster struct {
	resolveErr error
	postErr    error
	texts      []string
	cards      []render.Card
}

func (p *fakePoster) Resolve(_ context.Context, channelID string) (string, error) {
	if p.resolveErr != nil {
		return "", p.resolveErr
	}
	return "g-" + channelID, nil
}

func (p *fakePoster) PostText(_ context.Context, _ string, text string) error {
	if p.postErr != nil {
		return p.postErr
	}
	p.texts = append(p.texts, text)
	return nil
}

func (p *fakePoster) PostLeaderboard(_ context.Context, _ string, card render.Card) error {
	p.cards = append(p.cards, card)
	return nil
}

func msg(id, user, text string) Message {
	return Message{CommunityID: "g1", ChannelID: "c1", MessageID: id, AuthorID: user, Text: text}
}

func edit(id, user, text string, before *string) MessageEdit {
	return MessageEdit{Message: msg(id, user, text), Before: before}
}

func ptr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func countSales(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Sale{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func loadSale(t *testing.T, db *gorm.DB, messageID string) (*domain.Sale, bool) {
	t.Helper()
	var s domain.Sale
	err := db.Where("message_id = ?", messageID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		t.Fatalf("load sale: %v", err)
	}
	return &s, true
}
