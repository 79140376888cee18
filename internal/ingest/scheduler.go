package ingest

// scheduler.go runs the session retention job: import-session audit
// records past the retention window are moved to cold storage on a
// fixed interval. The job is long-running and context-aware for
// graceful shutdown; an individual cycle failing is logged and retried
// on the next tick, never fatal.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds the retention job tunables. Zero values fall
// back to the defaults.
type RetentionConfig struct {
	MaxAge        time.Duration // how long sessions stay hot (default: 90 days)
	CheckInterval time.Duration // how often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.MaxAge <= 0 {
		c.MaxAge = 90 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetention archives old import sessions until ctx is cancelled.
// It runs one cycle immediately, then every CheckInterval.
func (s *Service) StartRetention(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("session retention started",
		"max_age", cfg.MaxAge,
		"check_interval", cfg.CheckInterval,
	)

	s.runRetentionCycle(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session retention stopped")
			return
		case <-ticker.C:
			s.runRetentionCycle(ctx, cfg)
		}
	}
}

func (s *Service) runRetentionCycle(ctx context.Context, cfg RetentionConfig) {
	cutoff := time.Now().Add(-cfg.MaxAge)
	moved, err := s.store.ArchiveSessionsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("session retention cycle failed", "cutoff", cutoff, "error", err)
		return
	}
	if moved > 0 {
		slog.Info("sessions archived", "moved", moved, "cutoff", cutoff)
	}
}
