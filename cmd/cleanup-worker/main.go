package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/abdifahadi/wamedia-bot/internal/config"
)

// CleanupWorker sweeps the download temp directory, removing files and
// request directories that were left behind by crashed or abandoned
// downloads.
type CleanupWorker struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewCleanupWorker(dir string, maxAge, interval time.Duration) *CleanupWorker {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &CleanupWorker{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

func (cw *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(cw.interval)
	defer ticker.Stop()

	cw.logger.Info("Cleanup worker started",
		"dir", cw.dir,
		"max_age", cw.maxAge.String(),
		"interval", cw.interval.String())

	// Run once immediately on startup
	cw.sweep()

	for {
		select {
		case <-ctx.Done():
			cw.logger.Info("Cleanup worker shutting down")
			return
		case <-ticker.C:
			cw.sweep()
		}
	}
}

func (cw *CleanupWorker) sweep() {
	startTime := time.Now()
	cutoff := startTime.Add(-cw.maxAge)

	entries, err := os.ReadDir(cw.dir)
	if err != nil {
		cw.logger.Error("Failed to read temp directory",
			"dir", cw.dir,
			"error", err.Error())
		return
	}

	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(cw.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			cw.logger.Error("Failed to remove stale entry",
				"path", path,
				"error", err.Error())
			continue
		}
		removed++
	}

	duration := time.Since(startTime)

	cw.logger.Info("Completed temp directory sweep",
		"entries_removed", removed,
		"duration_ms", duration.Milliseconds(),
		"duration", duration.String())
}

func main() {
	// Load config
	cfg := config.MustLoad()

	if err := os.MkdirAll(cfg.Downloads.TempDir, 0o755); err != nil {
		slog.Error("Failed to create temp directory", "error", err.Error())
		os.Exit(1)
	}

	worker := NewCleanupWorker(cfg.Downloads.TempDir, cfg.Cleanup.MaxAge, cfg.Cleanup.Interval)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	worker.Start(ctx)

	slog.Info("Cleanup worker stopped")
}
