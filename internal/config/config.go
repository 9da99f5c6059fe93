// Package config loads process settings from BARANGAY_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/barangay/internal/photo"
)

const prefix = "BARANGAY_"

// Config holds everything cmd/barangay needs to start.
type Config struct {
	Port       string
	DBPath     string
	LogLevel   string
	LogFormat  string
	SessionTTL time.Duration
	UploadDir  string
	S3         photo.S3Config

	// AdminPassword seeds the bootstrap admin account when it does not exist.
	AdminPassword string

	// TrustProxy makes the rate limiter honor X-Forwarded-For and X-Real-IP.
	TrustProxy     bool
	LoginRateLimit int

	Backup BackupConfig
}

// BackupConfig controls encrypted database backups. Backups are off while
// Passphrase is empty. They go to the S3 bucket under BackupPrefix when S3
// is configured, otherwise to Dir.
type BackupConfig struct {
	Passphrase string
	Dir        string
	Prefix     string
	// Interval between scheduled runs. Zero runs backups on demand only.
	Interval  time.Duration
	Retention time.Duration
	// MaxSize caps one encrypted archive, in bytes.
	MaxSize int64
}

// Enabled reports whether a backup passphrase is configured.
func (b BackupConfig) Enabled() bool { return b.Passphrase != "" }

// Load reads .env (if present) and the environment. A missing .env file is
// not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset values.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(prefix + key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:          get("PORT", "8080"),
		DBPath:        get("DB_PATH", "barangay.db"),
		LogLevel:      get("LOG_LEVEL", "info"),
		LogFormat:     get("LOG_FORMAT", "text"),
		UploadDir:     get("UPLOAD_DIR", "uploads"),
		AdminPassword: get("ADMIN_PASSWORD", "admin123"),
		S3: photo.S3Config{
			Endpoint:  get("S3_ENDPOINT", ""),
			Bucket:    get("S3_BUCKET", ""),
			Region:    get("S3_REGION", "us-east-1"),
			AccessKey: get("S3_ACCESS_KEY", ""),
			SecretKey: get("S3_SECRET_KEY", ""),
			Prefix:    get("S3_PREFIX", "officials/"),
		},
		Backup: BackupConfig{
			Passphrase: getenv(prefix + "BACKUP_PASSPHRASE"),
			Dir:        get("BACKUP_DIR", "backups"),
			Prefix:     get("BACKUP_PREFIX", "backups/"),
		},
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(get("SESSION_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("parse %sSESSION_TTL: %w", prefix, err)
	}
	if cfg.TrustProxy, err = strconv.ParseBool(get("TRUST_PROXY", "false")); err != nil {
		return nil, fmt.Errorf("parse %sTRUST_PROXY: %w", prefix, err)
	}
	if cfg.LoginRateLimit, err = strconv.Atoi(get("LOGIN_RATE_LIMIT", "10")); err != nil {
		return nil, fmt.Errorf("parse %sLOGIN_RATE_LIMIT: %w", prefix, err)
	}
	if cfg.Backup.Interval, err = time.ParseDuration(get("BACKUP_INTERVAL", "0s")); err != nil {
		return nil, fmt.Errorf("parse %sBACKUP_INTERVAL: %w", prefix, err)
	}
	if cfg.Backup.Retention, err = time.ParseDuration(get("BACKUP_RETENTION", "720h")); err != nil {
		return nil, fmt.Errorf("parse %sBACKUP_RETENTION: %w", prefix, err)
	}
	if cfg.Backup.MaxSize, err = strconv.ParseInt(get("BACKUP_MAX_SIZE", "1073741824"), 10, 64); err != nil {
		return nil, fmt.Errorf("parse %sBACKUP_MAX_SIZE: %w", prefix, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Errorf("session ttl %s is shorter than one minute", c.SessionTTL))
	}
	if c.LoginRateLimit <= 0 {
		errs = append(errs, fmt.Errorf("login rate limit must be positive, got %d", c.LoginRateLimit))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if len(c.AdminPassword) < 6 {
		errs = append(errs, errors.New("admin password must be at least 6 characters"))
	}
	if c.S3.Bucket != "" && (c.S3.AccessKey == "" || c.S3.SecretKey == "") {
		errs = append(errs, errors.New("s3 bucket set without access and secret keys"))
	}
	if c.S3.Bucket == "" && c.UploadDir == "" {
		errs = append(errs, errors.New("either an upload dir or an s3 bucket is required"))
	}
	if c.Backup.Enabled() {
		if len(c.Backup.Passphrase) < 12 {
			errs = append(errs, errors.New("backup passphrase must be at least 12 characters"))
		}
		if c.Backup.Interval < 0 {
			errs = append(errs, fmt.Errorf("backup interval %s is negative", c.Backup.Interval))
		}
		if c.Backup.Retention < time.Hour {
			errs = append(errs, fmt.Errorf("backup retention %s is shorter than one hour", c.Backup.Retention))
		}
		if c.Backup.MaxSize <= 0 {
			errs = append(errs, fmt.Errorf("backup max size must be positive, got %d", c.Backup.MaxSize))
		}
		if !c.S3.Enabled() && c.Backup.Dir == "" {
			errs = append(errs, errors.New("either a backup dir or an s3 bucket is required"))
		}
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }
