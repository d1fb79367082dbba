package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
	"github.com/tbourn/sales-leaderboard-bot/internal/http/middleware"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
	"github.com/tbourn/sales-leaderboard-bot/internal/window"
)

var testNow = time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

// stubBoards serves fixed data and counts store calls.
type stubBoards struct {
	loc       *time.Location
	board     services.Board
	boardErr  error
	count     int64
	last      *time.Time
	verErr    error
	boardHits int
}

func (s *stubBoards) Window(offset int) (window.Window, error) {
	if offset > 0 || offset < -services.MaxDayOffset {
		return window.Window{}, services.ErrInvalidDayOffset
	}
	return window.Day(testNow, offset, s.loc), nil
}

func (s *stubBoards) Board(_ context.Context, w window.Window) (services.Board, error) {
	s.boardHits++
	b := s.board
	b.Window = w
	return b, s.boardErr
}

func (s *stubBoards) GrandTotal(_ context.Context, _ window.Window) (decimal.Decimal, error) {
	s.boardHits++
	return s.board.Total, s.boardErr
}

func (s *stubBoards) Version(_ context.Context, _ window.Window) (int64, *time.Time, error) {
	return s.count, s.last, s.verErr
}

// stubUndo pops sales from a per-user stack.
type stubUndo struct {
	mu    sync.Mutex
	sales map[string][]domain.Sale
	err   error
	calls int
}

func (s *stubUndo) Undo(_ context.Context, userID string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	list := s.sales[userID]
	if len(list) == 0 {
		return nil, services.ErrNothingToUndo
	}
	last := list[len(list)-1]
	s.sales[userID] = list[:len(list)-1]
	return &last, nil
}

type stubNames map[string]string

func (n stubNames) DisplayName(_ context.Context, communityID, userID string) (string, bool) {
	if communityID == "" {
		return "", false
	}
	name, ok := n[userID]
	return name, ok
}

func newIdemDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newRouter mounts h the way the API router does, without global concerns.
func newRouter(h *Handlers, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	r.GET("/leaderboard", h.Leaderboard)
	r.GET("/totals", h.Totals)

	var lookup middleware.IdempotencyLookup
	if db != nil {
		lookup = IdempotencyLookup(db)
	}
	r.POST("/undo", middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: UndoScope}, lookup), h.Undo)
	return r
}

func do(r http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

var errStore = errors.New("store unavailable")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
