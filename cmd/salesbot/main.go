// Command salesbot runs the sales leaderboard bot: it connects to the
// configured chat platform, records sales from channel messages, answers
// /leaderboard and /undo, posts the daily summary and, unless disabled,
// serves the HTTP API.
//
// Configuration comes from the environment (a local .env is honored).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/sales-leaderboard-bot/internal/chat"
	"github.com/tbourn/sales-leaderboard-bot/internal/chat/discord"
	"github.com/tbourn/sales-leaderboard-bot/internal/chat/telegram"
	"github.com/tbourn/sales-leaderboard-bot/internal/config"
	httpapi "github.com/tbourn/sales-leaderboard-bot/internal/http"
	"github.com/tbourn/sales-leaderboard-bot/internal/observability"
	"github.com/tbourn/sales-leaderboard-bot/internal/ratelimit"
	"github.com/tbourn/sales-leaderboard-bot/internal/repo"
	"github.com/tbourn/sales-leaderboard-bot/internal/scheduler"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
	"github.com/tbourn/sales-leaderboard-bot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	jobDailySummary     = "daily-summary"
	jobIdempotencyPurge = "idempotency-purge"
	purgeInterval       = time.Hour
	shutdownTimeout     = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		logger.Fatal().Err(err).Msg("salesbot stopped")
	}
	logger.Info().Msg("salesbot stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, cfg.Chat.Platform)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:  cfg.DB.Driver,
		Path:    cfg.DB.Path,
		DSN:     cfg.DB.DSN,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer closeDB(db)
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	platform, err := newPlatform(cfg.Chat)
	if err != nil {
		return err
	}

	loc := cfg.Ledger.Location
	ledger := services.NewLedgerService(db, loc, platform)
	ledger.StoreTimeout = cfg.Ledger.StoreTimeout
	boards := services.NewLeaderboardService(db, loc)
	boards.StoreTimeout = cfg.Ledger.StoreTimeout

	cmds := &chat.Commands{
		Ledger:  ledger,
		Boards:  boards,
		Limiter: ratelimit.New(cfg.Chat.CommandRPS, cfg.Chat.CommandBurst),
	}
	summary := &services.SummaryService{
		Boards:    boards,
		Poster:    platform,
		Directory: platform,
		ChannelID: cfg.Ledger.SummaryChan,
	}

	sched, err := newScheduler(ctx, cfg, db, summary)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn().Err(err).Msg("scheduler shutdown")
		}
	}()

	log.Info().
		Str("version", version).
		Str("platform", platform.Name()).
		Str("timezone", loc.String()).
		Str("db", cfg.DB.Driver).
		Bool("http", cfg.HTTPEnabled).
		Msg("salesbot starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := platform.Run(gctx, ledger, cmds); err != nil {
			return fmt.Errorf("%s: %w", platform.Name(), err)
		}
		if gctx.Err() == nil {
			return fmt.Errorf("%s: stopped unexpectedly", platform.Name())
		}
		return nil
	})

	if cfg.HTTPEnabled {
		gin.SetMode(cfg.GinMode)
		r := gin.New()
		httpapi.RegisterRoutes(r, cfg, httpapi.Deps{
			DB:     db,
			Boards: boards,
			Ledger: ledger,
			Names:  platform,
		})
		srv := httpapi.NewServer(cfg, r)

		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	return g.Wait()
}

// newPlatform builds the adapter selected by CHAT_PLATFORM.
func newPlatform(cfg config.ChatConfig) (chat.Platform, error) {
	switch cfg.Platform {
	case config.PlatformDiscord:
		bot, err := discord.New(discord.Options{Token: cfg.DiscordToken, AckEmoji: cfg.AckEmoji})
		if err != nil {
			return nil, err
		}
		return bot, nil
	case config.PlatformTelegram:
		bot, err := telegram.New(telegram.Options{Token: cfg.TelegramToken, AckEmoji: cfg.AckEmoji})
		if err != nil {
			return nil, err
		}
		return bot, nil
	default:
		return nil, fmt.Errorf("unsupported chat platform %q", cfg.Platform)
	}
}

// newScheduler registers the daily summary and the idempotency purge.
func newScheduler(ctx context.Context, cfg config.Config, db *gorm.DB, summary *services.SummaryService) (*scheduler.Scheduler, error) {
	var (
		sched *scheduler.Scheduler
		err   error
	)
	if cfg.Ledger.SchedulerLock {
		sched, err = scheduler.NewWithGORMLocker(ctx, db, cfg.Ledger.Location)
	} else {
		sched, err = scheduler.New(cfg.Ledger.Location)
	}
	if err != nil {
		return nil, err
	}

	if err := sched.Daily(jobDailySummary, cfg.Ledger.PostHour, cfg.Ledger.PostMinute, summary.Run); err != nil {
		return nil, err
	}
	err = sched.Every(jobIdempotencyPurge, purgeInterval, func(ctx context.Context) error {
		n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
		if err != nil {
			return err
		}
		if n > 0 {
			log.Ctx(ctx).Debug().Int64("purged", n).Msg("expired idempotency records removed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("close db")
	}
}
