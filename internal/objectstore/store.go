package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the artifact persistence collaborator: opaque bytes addressed by
// bucket and key, single-item get/put only.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// ArtifactKey names an uploaded artifact: {customerId}_{uniqueSuffix}.{ext}.
// Downstream consumers parse the customer id back out of the prefix, so the
// convention is load-bearing.
func ArtifactKey(customerID, ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s.%s", customerID, suffix, ext)
}

// StructuredPOKey names a structured PO export: {customerId}_{timestamp}_po.json.
func StructuredPOKey(customerID string, t time.Time) string {
	return fmt.Sprintf("%s_%s_po.json", customerID, t.Format("20060102_150405"))
}

// ArtifactRef renders the canonical bucket/key reference stored on records.
func ArtifactRef(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// FSStore keeps buckets as directories under a root. It backs the batch CLI
// and tests; production deployments plug in the real object store instead.
type FSStore struct {
	root   string
	logger *slog.Logger
}

func NewFSStore(root string, logger *slog.Logger) *FSStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSStore{root: root, logger: logger}
}

func (s *FSStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, bucket, key))
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *FSStore) Put(_ context.Context, bucket, key string, body []byte, contentType string) error {
	dir := filepath.Join(s.root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	if err := os.WriteFile(filepath.Join(dir, key), body, 0o644); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	s.logger.Info("objectstore.put", "bucket", bucket, "key", key, "bytes", len(body), "content_type", contentType)
	return nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	objects map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (s *MemStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, os.ErrNotExist)
	}
	return data, nil
}

func (s *MemStore) Put(_ context.Context, bucket, key string, body []byte, _ string) error {
	s.objects[bucket+"/"+key] = body
	return nil
}

// Keys lists stored keys for a bucket, for test assertions.
func (s *MemStore) Keys(bucket string) []string {
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, bucket+"/") {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	return keys
}
