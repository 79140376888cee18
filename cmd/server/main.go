package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/finledger/finledger/internal/config"
	"github.com/finledger/finledger/internal/ingest"
	"github.com/finledger/finledger/internal/logging"
	"github.com/finledger/finledger/internal/store"
	"github.com/finledger/finledger/internal/web"
)

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	service := ingest.NewService(st, ingest.Config{
		MaxConcurrent:    cfg.Import.MaxConcurrent,
		SlotWait:         cfg.Import.SlotWait,
		ExistenceTimeout: cfg.Import.ExistenceTimeout,
		PreviewRows:      cfg.Import.PreviewRows,
	})

	go service.StartRetention(ctx, ingest.RetentionConfig{
		MaxAge:        time.Duration(cfg.Retention.MaxAgeDays) * 24 * time.Hour,
		CheckInterval: cfg.Retention.CheckInterval,
	})

	server := web.NewServer(service, cfg)
	if err := server.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
