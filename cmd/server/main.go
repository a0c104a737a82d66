package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlexTLDR/seatplan/internal/config"
	"github.com/AlexTLDR/seatplan/internal/database"
	"github.com/AlexTLDR/seatplan/internal/i18n"
	"github.com/AlexTLDR/seatplan/internal/logger"
	"github.com/AlexTLDR/seatplan/internal/realtime"
	"github.com/AlexTLDR/seatplan/internal/roster"
	"github.com/AlexTLDR/seatplan/internal/seating"
	"github.com/AlexTLDR/seatplan/internal/server"
)

func main() {
	// Load .env file (ignore error if a file doesn't exist)
	// Use Overload to force to overwrite any existing environment variables
	envErr := godotenv.Overload()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	l := logger.WithModule("main")
	if envErr != nil {
		l.Debug("no .env file loaded", zap.Error(envErr))
	}

	if err := run(cfg, l); err != nil {
		l.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, l *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.New(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Warn("failed to close database", zap.Error(err))
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	hub := realtime.NewHub(cfg.CORSAllowedOrigins)

	// Postgres announces row changes itself, including those made by other
	// processes. SQLite only sees this process's writes.
	var feed realtime.Feed
	notifier := realtime.Notifiers{hub}
	if cfg.DatabaseDriver == database.DriverPostgres {
		listener, err := database.Listen(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to listen for changes: %w", err)
		}
		feed = listener
	} else {
		local := realtime.NewLocalFeed()
		notifier = append(notifier, local)
		feed = local
	}
	defer func() {
		if err := feed.Close(); err != nil {
			l.Warn("failed to close change feed", zap.Error(err))
		}
	}()

	lang := i18n.Parse(cfg.DefaultLanguage, i18n.Italian)
	people := roster.New(db, roster.Options{
		Label:    i18n.CompanionsLabel(lang),
		Notifier: notifier,
	})
	if err := people.Load(ctx); err != nil {
		return fmt.Errorf("failed to load guests: %w", err)
	}

	seats := seating.NewManager(db, people, seating.Options{ReleaseUnconfirmed: cfg.ReleaseUnconfirmedSeats})
	if err := seats.Load(ctx); err != nil {
		return fmt.Errorf("failed to load seating: %w", err)
	}
	if released, err := seats.Reconcile(ctx); err != nil {
		l.Warn("initial seating reconcile incomplete", zap.Error(err))
	} else if len(released) > 0 {
		l.Info("released stale seats", zap.Int64s("persons", released))
	}

	srv := server.New(cfg, people, seats, hub)
	invalidator := realtime.NewInvalidator(feed, people, seats, hub, cfg.InvalidationDebounce)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(":" + cfg.Port)
	})
	g.Go(func() error {
		return invalidator.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
