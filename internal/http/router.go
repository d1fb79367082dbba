// Package httpapi wires the HTTP transport (Gin) to the ledger services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, structured logging, panic recovery, response
// compression, metrics, CORS, security headers, idempotency, and rate
// limiting.
//
// The HTTP surface is optional. The bot works without it; it exists for
// dashboards and operators.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/sales-leaderboard-bot/internal/config"
	"github.com/tbourn/sales-leaderboard-bot/internal/http/handlers"
	"github.com/tbourn/sales-leaderboard-bot/internal/http/middleware"
	"github.com/tbourn/sales-leaderboard-bot/internal/ratelimit"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
)

// Deps are the collaborators the routes need.
type Deps struct {
	// DB stores idempotency records of POST /undo; nil disables replays.
	DB     *gorm.DB
	Boards handlers.BoardService
	Ledger handlers.UndoService
	// Names resolves display names; optional.
	Names services.MemberDirectory
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the ledger API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID and Identity: correlation id and caller
//  3. Logger: structured request logs, request-scoped context logger
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. CORS and Security headers
//
// POST /undo acts on the user named by X-User-ID, so it sits behind the
// API_TOKEN bearer check; without a token it answers 403. Per route, the
// idempotency validator runs before the rate limiter so that replays bypass
// the limiter.
func RegisterRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())
	r.Use(middleware.Identity())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; no endpoint takes a body) and compression
	r.Use(limitBody(64 << 10))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	useCORS(r, cfg.CORS)

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps.Boards, deps.Ledger, deps.Names)
	var lookup middleware.IdempotencyLookup
	if deps.DB != nil {
		h.WithIdempotency(deps.DB, cfg.IdempotencyTTL)
		lookup = handlers.IdempotencyLookup(deps.DB)
	}

	limit := middleware.RateLimit(ratelimit.New(cfg.RateRPS, cfg.RateBurst), middleware.KeyByUserOrIP())
	idem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		MaxLen: 200,
		Scope:  handlers.UndoScope,
	}, lookup)
	noStore := middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true})
	auth := middleware.RequireToken(cfg.APIToken)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		api.GET("/leaderboard", limit, h.Leaderboard)
		api.GET("/totals", limit, h.Totals)
		api.POST("/undo", auth, idem, limit, noStore, h.Undo)
	}
}

// NewServer builds the http.Server for handler from the configured limits.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

func useCORS(r *gin.Engine, cfg config.CORSConfig) {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", "X-User-ID", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	methods := []string{"GET", "POST", "OPTIONS"}

	if len(cfg.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     methods,
		AllowHeaders:     allowHeaders,
		ExposeHeaders:    exposeHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
