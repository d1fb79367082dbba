package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/sales-leaderboard-bot/internal/config"
	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
	"github.com/tbourn/sales-leaderboard-bot/internal/http/middleware"
	"github.com/tbourn/sales-leaderboard-bot/internal/repo"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

const testAPIToken = "router-test-token-0001"

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      10,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		IdempotencyTTL: time.Hour,
		APIToken:       testAPIToken,
	}
}

// newTestRouter wires the real services against an in-memory ledger.
func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, cfg, Deps{
		DB:     db,
		Boards: services.NewLeaderboardService(db, time.UTC),
		Ledger: services.NewLedgerService(db, time.UTC, nil),
	})
	return r, db
}

func seedSale(t *testing.T, db *gorm.DB, msgID, userID, amount string) {
	t.Helper()
	s := &domain.Sale{
		CommunityID: "g1",
		ChannelID:   "c1",
		MessageID:   msgID,
		UserID:      userID,
		Amount:      decimal.RequireFromString(amount),
		RecordedAt:  time.Now().UTC(),
	}
	if ok, err := repo.InsertSaleIfAbsent(context.Background(), db, s); err != nil || !ok {
		t.Fatalf("seed sale %s: ok=%v err=%v", msgID, ok, err)
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newTestRouter(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	// The API is mounted under the configured base path.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v2/totals", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v2/totals = %d", w.Code)
	}
}

func TestRegisterRoutes_Leaderboard(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	seedSale(t, db, "m1", "alice", "100")
	seedSale(t, db, "m2", "bob", "250.50")
	seedSale(t, db, "m3", "alice", "50")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /leaderboard = %d body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Standings []struct {
			Rank   int    `json:"rank"`
			UserID string `json:"user_id"`
			Total  string `json:"total"`
		} `json:"standings"`
		Total string `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Standings) != 2 || body.Standings[0].UserID != "bob" || body.Standings[1].Total != "150.00" {
		t.Fatalf("unexpected standings: %+v", body.Standings)
	}
	if body.Total != "400.50" {
		t.Fatalf("total = %q; want 400.50", body.Total)
	}

	// Conditional request with the returned ETag → 304
	tag := w.Header().Get("ETag")
	if tag == "" {
		t.Fatalf("expected ETag header")
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	req.Header.Set("If-None-Match", tag)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional GET = %d; want 304", w.Code)
	}

	// Out-of-range day → 400
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard?day=1", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("GET ?day=1 = %d; want 400", w.Code)
	}
}

func TestRegisterRoutes_UndoWithIdempotency(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	seedSale(t, db, "m1", "alice", "100")
	seedSale(t, db, "m2", "alice", "40")

	post := func(key string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/undo", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIToken)
		req.Header.Set("X-User-ID", "alice")
		if key != "" {
			req.Header.Set(middleware.HeaderIdempotencyKey, key)
		}
		r.ServeHTTP(w, req)
		return w
	}

	w := post("k-1")
	if w.Code != http.StatusOK {
		t.Fatalf("first undo = %d body=%s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc == "" {
		t.Fatalf("expected no-store Cache-Control on undo")
	}

	// Retry with the same key replays instead of removing m1.
	w = post("k-1")
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay = %d replayed=%q", w.Code, w.Header().Get("Idempotency-Replayed"))
	}
	if _, err := repo.GetSaleByMessage(context.Background(), db, "m1"); err != nil {
		t.Fatalf("m1 should survive the replay: %v", err)
	}

	// A fresh key undoes the next sale, then nothing is left.
	if w = post("k-2"); w.Code != http.StatusOK {
		t.Fatalf("second undo = %d", w.Code)
	}
	if w = post(""); w.Code != http.StatusNotFound {
		t.Fatalf("third undo = %d; want 404", w.Code)
	}

	// Malformed key → 400 before the handler runs.
	if w = post("bad key!"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad key = %d; want 400", w.Code)
	}
}

func TestRegisterRoutes_UndoRequiresUser(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/undo", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous undo = %d; want 401", w.Code)
	}
}

func TestRegisterRoutes_UndoRejectsClaimedUserWithoutToken(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	seedSale(t, db, "victim-msg", "victim", "500")

	cases := []struct {
		name   string
		header string
	}{
		{"no credentials", ""},
		{"wrong token", "Bearer not-the-token"},
		{"user id as token", "Bearer victim"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/undo", nil)
			req.Header.Set("X-User-ID", "victim")
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("undo = %d body=%s; want 401", w.Code, w.Body.String())
			}
		})
	}

	if _, err := repo.GetSaleByMessage(context.Background(), db, "victim-msg"); err != nil {
		t.Fatalf("victim's sale must survive: %v", err)
	}
}

func TestRegisterRoutes_UndoDisabledWithoutConfiguredToken(t *testing.T) {
	cfg := testConfig()
	cfg.APIToken = ""
	r, db := newTestRouter(t, cfg)
	seedSale(t, db, "m1", "erin", "75")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/undo", nil)
	req.Header.Set("X-User-ID", "erin")
	req.Header.Set("Authorization", "Bearer "+testAPIToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("undo = %d; want 403", w.Code)
	}
	if _, err := repo.GetSaleByMessage(context.Background(), db, "m1"); err != nil {
		t.Fatalf("sale must survive: %v", err)
	}

	// Read endpoints stay open.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/totals", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /totals = %d", w.Code)
	}
}

func TestRegisterRoutes_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	r, _ := newTestRouter(t, cfg)

	get := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/totals", nil)
		req.Header.Set("X-User-ID", "carol")
		r.ServeHTTP(w, req)
		return w.Code
	}
	if code := get(); code != http.StatusOK {
		t.Fatalf("first GET = %d", code)
	}
	if code := get(); code != http.StatusTooManyRequests {
		t.Fatalf("second GET = %d; want 429", code)
	}

	// Health is not rate limited.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
}

func TestRegisterRoutes_WithoutDB_NoReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	seedSale(t, db, "m1", "dave", "10")
	seedSale(t, db, "m2", "dave", "20")

	r := gin.New()
	RegisterRoutes(r, testConfig(), Deps{
		Boards: services.NewLeaderboardService(db, time.UTC),
		Ledger: services.NewLedgerService(db, time.UTC, nil),
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/undo", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIToken)
		req.Header.Set("X-User-ID", "dave")
		req.Header.Set(middleware.HeaderIdempotencyKey, "same")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "" {
			t.Fatalf("undo #%d = %d replayed=%q", i, w.Code, w.Header().Get("Idempotency-Replayed"))
		}
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses the otel + gzip + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r, _ := newTestRouter(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/totals", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /totals = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("expected gzip response, got %q", enc)
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig()
	cfg.Port = "9090"
	cfg.ReadHeaderTimeout = 3 * time.Second
	cfg.MaxHeaderBytes = 4096
	srv := NewServer(cfg, http.NotFoundHandler())
	if srv.Addr != ":9090" || srv.ReadHeaderTimeout != 3*time.Second || srv.MaxHeaderBytes != 4096 {
		t.Fatalf("unexpected server: addr=%s rht=%s mhb=%d", srv.Addr, srv.ReadHeaderTimeout, srv.MaxHeaderBytes)
	}
}
