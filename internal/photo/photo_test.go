package photo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/barangay/internal/sentinel"
)

func TestNewKey(t *testing.T) {
	for _, name := range []string{"me.png", "ME.JPG", "portrait.jpeg", "anim.gif"} {
		key, err := NewKey(name)
		if err != nil {
			t.Errorf("NewKey(%q): %v", name, err)
			continue
		}
		if !strings.HasSuffix(key, strings.ToLower(name[strings.LastIndex(name, "."):])) {
			t.Errorf("NewKey(%q) = %q, want matching extension", name, key)
		}
	}

	for _, name := range []string{"script.svg", "noext", "doc.pdf"} {
		if _, err := NewKey(name); !errors.Is(err, sentinel.ErrValidation) {
			t.Errorf("NewKey(%q) err = %v, want ErrValidation", name, err)
		}
	}

	a, _ := NewKey("a.png")
	b, _ := NewKey("a.png")
	if a == b {
		t.Error("expected distinct keys for repeated uploads")
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"x.png":  "image/png",
		"x.JPG":  "image/jpeg",
		"x.gif":  "image/gif",
		"x.webp": "application/octet-stream",
	}
	for key, want := range tests {
		if got := ContentType(key); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}
	ctx := context.Background()

	if err := s.Put(ctx, "abc.gif", "image/gif", strings.NewReader("gif-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}
	body, err := s.Open(ctx, "abc.gif")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "gif-bytes" {
		t.Errorf("data = %q, want %q", data, "gif-bytes")
	}

	if err := s.Delete(ctx, "abc.gif"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "abc.gif"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if _, err := s.Open(ctx, "abc.gif"); !errors.Is(err, ErrNotExist) {
		t.Errorf("open after delete err = %v, want ErrNotExist", err)
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir())

	for _, key := range []string{"../etc/passwd", "a/b.png", ".hidden", ""} {
		if err := s.Put(context.Background(), key, "image/png", strings.NewReader("x")); !errors.Is(err, sentinel.ErrValidation) {
			t.Errorf("Put(%q) err = %v, want ErrValidation", key, err)
		}
	}
}

func TestHandler(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir())
	s.Put(context.Background(), "abc.png", "image/png", strings.NewReader("png-bytes"))

	mux := http.NewServeMux()
	mux.Handle("GET /uploads/{key}", Handler(s, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/uploads/abc.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "png-bytes")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/uploads/missing.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}

func TestLocalStorageMaxSizeOption(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), WithMaxSize(MaxSize*4))
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	body := bytes.NewReader(make([]byte, MaxSize+1))
	if err := s.Put(context.Background(), "archive.db.enc", "application/octet-stream", body); err != nil {
		t.Fatalf("put above default limit: %v", err)
	}

	small, _ := NewLocalStorage(t.TempDir(), WithMaxSize(8))
	err = small.Put(context.Background(), "tiny.png", "image/png", strings.NewReader("123456789"))
	if !errors.Is(err, sentinel.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}
