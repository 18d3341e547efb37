package reportstore

import (
	"context"
	"strings"
	"testing"
)

func TestLocalStore_PutGetRoundtrip(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	uri, err := store.Put(context.Background(), "run-123", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !strings.HasPrefix(uri, "file://") || !strings.HasSuffix(uri, "run-123.json") {
		t.Fatalf("unexpected uri %q", uri)
	}

	data, err := store.Get(context.Background(), "run-123")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("payload mismatch: %s", data)
	}
}

func TestLocalStore_NestedKeys(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	if _, err := store.Put(context.Background(), "boo/run-456", []byte(`{}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.Get(context.Background(), "boo/run-456"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestLocalStore_GetMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	if _, err := store.Get(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestLocalStore_RespectsContext(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Put(ctx, "run-789", []byte(`{}`)); err == nil {
		t.Fatal("expected context error")
	}
}

func TestFromEnv_LocalFallback(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "")
	t.Setenv("MINIO_ACCESS_KEY", "")
	t.Setenv("MINIO_SECRET_KEY", "")
	t.Setenv("REPORTSTORE_DIR", t.TempDir())

	store, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Fatalf("expected *LocalStore without MinIO settings, got %T", store)
	}
}

func TestFromEnv_MinioWhenConfigured(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "http://localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio123")
	t.Setenv("REPORTSTORE_BUCKET", "test-bucket")

	store, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	ms, ok := store.(*MinioStore)
	if !ok {
		t.Fatalf("expected *MinioStore, got %T", store)
	}
	if ms.cfg.Bucket != "test-bucket" {
		t.Fatalf("unexpected bucket %q", ms.cfg.Bucket)
	}
}

func TestMinioStore_ObjectKeyPrefix(t *testing.T) {
	s := &MinioStore{cfg: Config{Prefix: "/reports/"}}
	if got := s.objectKey("run-1"); got != "reports/run-1.json" {
		t.Fatalf("unexpected key %q", got)
	}
	s.cfg.Prefix = ""
	if got := s.objectKey("run-1"); got != "run-1.json" {
		t.Fatalf("unexpected key %q", got)
	}
}
