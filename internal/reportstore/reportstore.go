// Package reportstore archives replication run reports to an object store.
package reportstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store persists run reports keyed by run ID.
type Store interface {
	// Put writes the report payload and returns its storage URI.
	Put(ctx context.Context, key string, payload []byte) (string, error)

	// Get reads a previously stored report.
	Get(ctx context.Context, key string) ([]byte, error)
}

// Config holds object-store connection settings.
type Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	Prefix          string
}

// FromEnv builds a store from REPORTSTORE_*/MINIO_* variables, falling back
// to a local directory store when no MinIO endpoint is configured.
func FromEnv() (Store, error) {
	cfg := Config{
		EndpointURL:     os.Getenv("MINIO_ENDPOINT"),
		AccessKeyID:     os.Getenv("MINIO_ACCESS_KEY"),
		SecretAccessKey: os.Getenv("MINIO_SECRET_KEY"),
		UseSSL:          os.Getenv("MINIO_USE_SSL") == "true",
		Bucket:          getenv("REPORTSTORE_BUCKET", "stitch-runs"),
		Prefix:          getenv("REPORTSTORE_PREFIX", "reports"),
	}

	if cfg.EndpointURL != "" && cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return NewMinioStore(cfg)
	}

	root := getenv("REPORTSTORE_DIR", filepath.Join(os.TempDir(), "stitch-reports"))
	return NewLocalStore(root), nil
}

func getenv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// =============================================================================
// MINIO STORE
// =============================================================================

// MinioStore writes reports to a MinIO/S3 bucket.
type MinioStore struct {
	client *minio.Client
	cfg    Config
}

// NewMinioStore creates a MinIO-backed report store.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("reportstore: endpoint is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("reportstore: credentials are required")
	}

	endpoint := cfg.EndpointURL
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.EndpointURL); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("reportstore: create client: %w", err)
	}

	return &MinioStore{client: client, cfg: cfg}, nil
}

// Put writes the payload under <prefix>/<key>.json and returns its URI.
func (s *MinioStore) Put(ctx context.Context, key string, payload []byte) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	objectKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, objectKey,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("reportstore: put %s: %w", objectKey, err)
	}
	return fmt.Sprintf("minio://%s/%s", s.cfg.Bucket, objectKey), nil
}

// Get reads the payload stored under key.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("reportstore: get %s: %w", key, err)
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("reportstore: bucket check: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("reportstore: create bucket: %w", err)
	}
	return nil
}

func (s *MinioStore) objectKey(key string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	if prefix == "" {
		return key + ".json"
	}
	return prefix + "/" + key + ".json"
}

// =============================================================================
// LOCAL STORE
// =============================================================================

// LocalStore persists reports on disk, mimicking the object store for dev
// and tests.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local report store rooted at dir.
func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "stitch-reports")
	}
	_ = os.MkdirAll(root, 0o755)
	return &LocalStore{root: root}
}

// Put writes the payload to <root>/<key>.json.
func (s *LocalStore) Put(ctx context.Context, key string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filepath.FromSlash(key)+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("reportstore: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("reportstore: %w", err)
	}
	return "file://" + path, nil
}

// Get reads the payload stored under key.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)+".json"))
	if err != nil {
		return nil, fmt.Errorf("reportstore: %w", err)
	}
	return data, nil
}
