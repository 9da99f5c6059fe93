package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/barangay/internal/config"
	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/logging"
	"github.com/dukerupert/barangay/internal/photo"
	"github.com/dukerupert/barangay/internal/server"
)

const cleanupInterval = 15 * time.Minute

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	photos, err := newPhotoStorage(cfg, logger)
	if err != nil {
		return err
	}

	backups, err := newBackupStorage(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.New(db, *cfg, photos, backups, reg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	created, err := srv.Accounts().EnsureAdmin(ctx, "admin", cfg.AdminPassword, false)
	if err != nil {
		return fmt.Errorf("ensure admin account: %w", err)
	}
	if created {
		logger.Warn("created default admin account; change its password from the settings page", "username", "admin")
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("barangay records running", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := srv.Accounts().CleanupSessions(ctx)
				if err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Debug("expired sessions removed", "count", n)
				}
				if dropped := srv.RateLimiter().Cleanup(); dropped > 0 {
					logger.Debug("rate limiter entries removed", "count", dropped)
				}
			}
		}
	})

	g.Go(func() error {
		return srv.Backups().Loop(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newPhotoStorage uses the S3 bucket when one is configured and the local
// upload directory otherwise.
func newPhotoStorage(cfg *config.Config, logger *slog.Logger) (photo.Storage, error) {
	if cfg.S3.Enabled() {
		logger.Info("storing official photos in s3", "bucket", cfg.S3.Bucket, "endpoint", cfg.S3.Endpoint)
		return photo.NewS3Storage(cfg.S3), nil
	}
	local, err := photo.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("open upload dir: %w", err)
	}
	logger.Info("storing official photos on disk", "dir", cfg.UploadDir)
	return local, nil
}

// newBackupStorage returns nil when backups are off. Archives share the
// photo bucket under their own prefix, or go to the backup directory.
func newBackupStorage(cfg *config.Config, logger *slog.Logger) (photo.Storage, error) {
	if !cfg.Backup.Enabled() {
		logger.Info("backups disabled; set BARANGAY_BACKUP_PASSPHRASE to enable")
		return nil, nil
	}
	limit := photo.WithMaxSize(cfg.Backup.MaxSize)
	if cfg.S3.Enabled() {
		s3cfg := cfg.S3
		s3cfg.Prefix = cfg.Backup.Prefix
		logger.Info("storing backups in s3", "bucket", s3cfg.Bucket, "prefix", s3cfg.Prefix, "interval", cfg.Backup.Interval)
		return photo.NewS3Storage(s3cfg, limit), nil
	}
	local, err := photo.NewLocalStorage(cfg.Backup.Dir, limit)
	if err != nil {
		return nil, fmt.Errorf("open backup dir: %w", err)
	}
	logger.Info("storing backups on disk", "dir", cfg.Backup.Dir, "interval", cfg.Backup.Interval)
	return local, nil
}
