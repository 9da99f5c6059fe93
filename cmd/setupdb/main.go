// Command setupdb creates the database schema and the administrator account.
// With -drop it first rolls back every migration, erasing all records. With
// -restore it replaces the database with a decrypted backup archive before
// migrating; stop the server first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukerupert/barangay/internal/account"
	"github.com/dukerupert/barangay/internal/backup"
	"github.com/dukerupert/barangay/internal/config"
	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/logging"
)

func main() {
	drop := flag.Bool("drop", false, "drop all tables before migrating")
	username := flag.String("admin", "admin", "administrator username")
	restore := flag.String("restore", "", "encrypted backup archive to restore")
	flag.Parse()

	if err := run(*drop, *username, *restore); err != nil {
		slog.Error("setup failed", "error", err)
		os.Exit(1)
	}
}

func run(drop bool, username, restore string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if restore != "" {
		if drop {
			return errors.New("-drop and -restore cannot be combined")
		}
		if err := restoreArchive(restore, cfg); err != nil {
			return err
		}
		logger.Warn("database restored from backup", "db", cfg.DBPath, "archive", restore)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if drop {
		if err := database.Reset(db); err != nil {
			return err
		}
		logger.Warn("database reset", "db", cfg.DBPath)
	}

	accounts := account.NewService(db, cfg.SessionTTL, nil, logger)
	changed, err := accounts.EnsureAdmin(context.Background(), username, cfg.AdminPassword, true)
	if err != nil {
		return fmt.Errorf("ensure admin account: %w", err)
	}
	logger.Info("database ready", "db", cfg.DBPath, "admin", username, "admin_updated", changed)
	return nil
}

func restoreArchive(path string, cfg *config.Config) error {
	if !cfg.Backup.Enabled() {
		return errors.New("restore needs BARANGAY_BACKUP_PASSPHRASE")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	if err := backup.Restore(f, cfg.Backup.Passphrase, cfg.DBPath); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return nil
}
