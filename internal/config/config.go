// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the chat platform
// credentials, the ledger timezone and summary schedule, storage, the HTTP
// read API, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported chat platforms.
const (
	PlatformDiscord  = "discord"
	PlatformTelegram = "telegram"
)

const minAPITokenLength = 16

// ChatConfig selects the chat platform and its credentials.
type ChatConfig struct {
	Platform      string // CHAT_PLATFORM: discord|telegram
	DiscordToken  string // DISCORD_TOKEN
	TelegramToken string // TELEGRAM_TOKEN
	AckEmoji      string // ACK_EMOJI; platform default when empty

	// Command rate limit per user
	CommandRPS   float64 // COMMAND_RATE_RPS
	CommandBurst int     // COMMAND_RATE_BURST
}

// Token returns the credential of the selected platform.
func (c ChatConfig) Token() string {
	if c.Platform == PlatformTelegram {
		return c.TelegramToken
	}
	return c.DiscordToken
}

// LedgerConfig defines the business day and daily summary.
type LedgerConfig struct {
	Timezone      string         // TIMEZONE (IANA name)
	Location      *time.Location // resolved Timezone
	SummaryChan   string         // LEADERBOARD_CHANNEL_ID; empty disables the summary
	PostHour      int            // POST_HOUR [0,23]
	PostMinute    int            // POST_MINUTE [0,59]
	StoreTimeout  time.Duration  // STORE_TIMEOUT per store call
	SchedulerLock bool           // SCHEDULER_LOCK: coordinate runs through the DB
}

// DBConfig selects the ledger database.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH (sqlite)
	DSN    string // DATABASE_URL (postgres)
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines HTTP security header settings.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	Chat   ChatConfig
	Ledger LedgerConfig
	DB     DBConfig

	// HTTP server
	HTTPEnabled       bool          // HTTP_ENABLED
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	APIBasePath       string        // base path for API routes

	// APIToken is the bearer token POST /undo requires (API_TOKEN).
	// Empty keeps HTTP undo disabled.
	APIToken string

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// HTTP rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Chat: ChatConfig{
			Platform:      strings.ToLower(strings.TrimSpace(getenv("CHAT_PLATFORM", PlatformDiscord))),
			DiscordToken:  strings.TrimSpace(getenv("DISCORD_TOKEN", "")),
			TelegramToken: strings.TrimSpace(getenv("TELEGRAM_TOKEN", "")),
			AckEmoji:      getenv("ACK_EMOJI", ""),
			CommandRPS:    getfloat("COMMAND_RATE_RPS", 0.5),
			CommandBurst:  getint("COMMAND_RATE_BURST", 3),
		},
		Ledger: LedgerConfig{
			Timezone:      getenv("TIMEZONE", "America/Chicago"),
			SummaryChan:   strings.TrimSpace(getenv("LEADERBOARD_CHANNEL_ID", "")),
			PostHour:      getint("POST_HOUR", 9),
			PostMinute:    getint("POST_MINUTE", 0),
			StoreTimeout:  getdur("STORE_TIMEOUT", 5*time.Second),
			SchedulerLock: getbool("SCHEDULER_LOCK", false),
		},
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "sales.db"),
			DSN:    getenv("DATABASE_URL", ""),
		},

		// HTTP server
		HTTPEnabled:       getbool("HTTP_ENABLED", true),
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		APIBasePath:       normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		APIToken:          strings.TrimSpace(getenv("API_TOKEN", "")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "sales-leaderboard-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.Chat.Platform {
	case PlatformDiscord, PlatformTelegram:
	default:
		return cfg, errors.New("CHAT_PLATFORM must be one of: discord, telegram")
	}
	if cfg.Chat.Token() == "" {
		return cfg, fmt.Errorf("%s_TOKEN must be set", strings.ToUpper(cfg.Chat.Platform))
	}
	if cfg.Chat.CommandRPS < 0 {
		return cfg, errors.New("COMMAND_RATE_RPS must be >= 0")
	}
	if cfg.Chat.CommandBurst < 1 {
		return cfg, errors.New("COMMAND_RATE_BURST must be >= 1")
	}

	loc, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE %q: %w", cfg.Ledger.Timezone, err)
	}
	cfg.Ledger.Location = loc
	if cfg.Ledger.PostHour < 0 || cfg.Ledger.PostHour > 23 {
		return cfg, errors.New("POST_HOUR must be between 0 and 23")
	}
	if cfg.Ledger.PostMinute < 0 || cfg.Ledger.PostMinute > 59 {
		return cfg, errors.New("POST_MINUTE must be between 0 and 59")
	}
	if cfg.Ledger.StoreTimeout <= 0 {
		return cfg, errors.New("STORE_TIMEOUT must be > 0")
	}

	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DATABASE_URL must be set for DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.APIToken != "" && len(cfg.APIToken) < minAPITokenLength {
		return cfg, fmt.Errorf("API_TOKEN must be at least %d characters", minAPITokenLength)
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
