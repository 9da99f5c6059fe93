// Package photo stores objects, official portraits and database backups,
// behind a small storage interface, on local disk or in an S3-compatible bucket.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/barangay/internal/sentinel"
)

// MaxSize caps an uploaded photo.
const MaxSize = 5 << 20

// ErrNotExist is returned by Open for an unknown key.
var ErrNotExist = errors.New("photo does not exist")

// Option adjusts a Storage.
type Option func(*options)

type options struct {
	maxSize int64
}

// WithMaxSize replaces MaxSize as the largest object Put accepts.
func WithMaxSize(n int64) Option {
	return func(o *options) { o.maxSize = n }
}

func buildOptions(opts []Option) options {
	o := options{maxSize: MaxSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func tooLarge(limit int64) error {
	return fmt.Errorf("%w: object is larger than %d MB", sentinel.ErrValidation, limit>>20)
}

// Storage keeps photo objects by key.
type Storage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// Allowed reports whether filename has an accepted image extension.
func Allowed(filename string) bool {
	_, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// NewKey returns a fresh object key that keeps the extension of the
// uploaded filename.
func NewKey(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := contentTypes[ext]; !ok {
		return "", fmt.Errorf("%w: photo must be png, jpg, jpeg or gif", sentinel.ErrValidation)
	}
	return uuid.NewString() + ext, nil
}

// ContentType returns the MIME type for key.
func ContentType(key string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// validKey rejects keys that could escape the storage namespace.
func validKey(key string) error {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: invalid photo key %q", sentinel.ErrValidation, key)
	}
	return nil
}

// Handler serves stored photos at a route with a {key} wildcard.
func Handler(s Storage, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		if validKey(key) != nil {
			http.NotFound(w, r)
			return
		}
		body, err := s.Open(r.Context(), key)
		if errors.Is(err, ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			logger.Error("open photo", "key", key, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", ContentType(key))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := io.Copy(w, body); err != nil {
			logger.Debug("write photo", "key", key, "error", err)
		}
	}
}
