package photo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/barangay/internal/sentinel"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.types[*input.Key] = *input.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestS3Storage(client *mockS3Client) *S3Storage {
	return &S3Storage{client: client, bucket: "photos", prefix: "officials/", maxSize: MaxSize}
}

func TestS3StorageRoundTrip(t *testing.T) {
	mock := newMockS3()
	s := newTestS3Storage(mock)
	ctx := context.Background()

	if err := s.Put(ctx, "abc.png", "image/png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := mock.objects["officials/abc.png"]; !ok {
		t.Fatal("expected object stored under prefix")
	}
	if got := mock.types["officials/abc.png"]; got != "image/png" {
		t.Errorf("content type = %q, want %q", got, "image/png")
	}

	body, err := s.Open(ctx, "abc.png")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "png-bytes" {
		t.Errorf("data = %q, want %q", data, "png-bytes")
	}

	if err := s.Delete(ctx, "abc.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Open(ctx, "abc.png"); !errors.Is(err, ErrNotExist) {
		t.Errorf("open after delete err = %v, want ErrNotExist", err)
	}
}

func TestS3StoragePutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("bucket unavailable")
	s := newTestS3Storage(mock)

	if err := s.Put(context.Background(), "abc.png", "image/png", strings.NewReader("x")); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestS3StorageRejectsLargeUpload(t *testing.T) {
	s := newTestS3Storage(newMockS3())

	big := bytes.NewReader(make([]byte, MaxSize+1))
	err := s.Put(context.Background(), "big.png", "image/png", big)
	if !errors.Is(err, sentinel.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestS3ConfigEnabled(t *testing.T) {
	if (S3Config{Bucket: "b"}).Enabled() {
		t.Error("expected config without credentials to be disabled")
	}
	if !(S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Error("expected complete config to be enabled")
	}
}
