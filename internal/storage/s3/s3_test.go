package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	appconfig "github.com/movie-api/moviecheck/internal/config"
)

// ---------------------------------------------------------------------------
// New(): constructor validation (no AWS connection required)
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.S3StorageConfig
	}{
		{"missing bucket", appconfig.S3StorageConfig{Region: "us-east-1"}},
		{"missing region", appconfig.S3StorageConfig{Bucket: "my-bucket"}},
		{"key without secret", appconfig.S3StorageConfig{Bucket: "my-bucket", Region: "us-east-1", AccessKeyID: "AKIA"}},
		{"secret without key", appconfig.S3StorageConfig{Bucket: "my-bucket", Region: "us-east-1", SecretAccessKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.cfg); err == nil {
				t.Error("New() = nil error, want validation error")
			}
		})
	}
}

func TestNew_AssumeRole(t *testing.T) {
	// AssumeRole is lazy, so construction succeeds without network access.
	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "my-bucket",
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		RoleARN:         "arn:aws:iam::123456789012:role/moviecheck",
		ExternalID:      "external-id-123",
	})
	if err != nil {
		t.Fatalf("New() with role_arn error: %v", err)
	}
	if s == nil {
		t.Error("New() returned nil storage")
	}
}

// ---------------------------------------------------------------------------
// Mock S3-compatible HTTP server
// ---------------------------------------------------------------------------

type s3MockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string // amz-meta headers, lowercase, no prefix
}

func (ms *s3MockStore) get(key string) ([]byte, map[string]string, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	data, ok := ms.objects[key]
	return data, ms.meta[key], ok
}

// newS3TestStorage creates an S3Storage backed by a mock server speaking just
// enough path-style S3 REST for object PUT, GET and HEAD.
func newS3TestStorage(t *testing.T) (*S3Storage, *s3MockStore) {
	t.Helper()

	ms := &s3MockStore{
		objects: map[string][]byte{},
		meta:    map[string]map[string]string{},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		idx := strings.IndexByte(path, '/')
		if idx < 0 || path[:idx] != "test-bucket" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		key := path[idx+1:]

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			meta := map[string]string{}
			for hk, hv := range r.Header {
				lk := strings.ToLower(hk)
				if strings.HasPrefix(lk, "x-amz-meta-") && len(hv) > 0 {
					meta[strings.TrimPrefix(lk, "x-amz-meta-")] = hv[0]
				}
			}
			ms.mu.Lock()
			ms.objects[key] = data
			ms.meta[key] = meta
			ms.mu.Unlock()
			w.Header().Set("ETag", `"test-etag"`)
			w.WriteHeader(http.StatusOK)

		case http.MethodGet:
			data, _, ok := ms.get(key)
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data)

		case http.MethodHead:
			data, _, ok := ms.get(key)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)

		case http.MethodDelete:
			// Not part of the backend surface; answer like S3 would.
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        srv.URL,
	})
	if err != nil {
		t.Fatalf("New() for mock S3: %v", err)
	}
	return s, ms
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

func TestS3_Upload(t *testing.T) {
	s, ms := newS3TestStorage(t)

	data := []byte(`{"step":"health","passed":true}` + "\n")
	result, err := s.Upload(context.Background(), "moviecheck/run-1.jsonl", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if result.Key != "moviecheck/run-1.jsonl" {
		t.Errorf("Key = %q, want moviecheck/run-1.jsonl", result.Key)
	}
	if result.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", result.Size, len(data))
	}
	if len(result.Checksum) != 64 {
		t.Errorf("Checksum length = %d, want 64 (SHA256 hex)", len(result.Checksum))
	}

	stored, meta, ok := ms.get("moviecheck/run-1.jsonl")
	if !ok {
		t.Fatal("object was not stored")
	}
	if !bytes.Equal(stored, data) {
		t.Errorf("stored = %q, want %q", stored, data)
	}
	if meta["sha256"] != result.Checksum {
		t.Errorf("sha256 metadata = %q, want %q", meta["sha256"], result.Checksum)
	}
}

func TestS3_Upload_ChecksumConsistency(t *testing.T) {
	s, _ := newS3TestStorage(t)

	content := "consistent data for checksum"
	r1, _ := s.Upload(context.Background(), "c1.jsonl", strings.NewReader(content), int64(len(content)))
	r2, _ := s.Upload(context.Background(), "c2.jsonl", strings.NewReader(content), int64(len(content)))
	if r1.Checksum != r2.Checksum {
		t.Errorf("same content produced different checksums: %q vs %q", r1.Checksum, r2.Checksum)
	}
}

// ---------------------------------------------------------------------------
// Download / Exists
// ---------------------------------------------------------------------------

func TestS3_Download(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	want := []byte("download me from s3")
	if _, err := s.Upload(ctx, "dl.jsonl", bytes.NewReader(want), int64(len(want))); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rc, err := s.Download(ctx, "dl.jsonl")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()

	if !bytes.Equal(got, want) {
		t.Errorf("Download content = %q, want %q", got, want)
	}
}

func TestS3_Download_NotFound(t *testing.T) {
	s, _ := newS3TestStorage(t)

	if _, err := s.Download(context.Background(), "nonexistent.jsonl"); err == nil {
		t.Error("Download() expected error for missing key, got nil")
	}
}

func TestS3_Exists(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "e.jsonl")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if exists {
		t.Error("Exists() = true before upload, want false")
	}

	_, _ = s.Upload(ctx, "e.jsonl", strings.NewReader("x"), 1)

	exists, err = s.Exists(ctx, "e.jsonl")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !exists {
		t.Error("Exists() = false after upload, want true")
	}
}
