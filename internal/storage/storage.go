package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/trckr/apiserver/config"
)

const jsonContentType = "application/json"

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
	Close() error
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
	name    string
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage, name string) *Storage {
	return &Storage{backend: backend, name: name}
}

// NewFromConfig builds the backend selected by cfg.Backend and ensures its
// bucket exists. It returns nil when object storage is disabled.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))

	var (
		backend ObjectStorage
		err     error
	)
	switch name {
	case "", "none":
		return nil, nil
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "s3":
		backend, err = NewS3Client(ctx, cfg.S3)
	case "memory":
		backend = NewMemoryStore(cfg.Minio.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket %q: %w", backend.Bucket(), err)
	}
	return NewStorage(backend, name), nil
}

// Name returns the configured backend name.
func (s *Storage) Name() string {
	return s.name
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// PutJSON encodes value as indented JSON and uploads it under key.
func (s *Storage) PutJSON(ctx context.Context, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), jsonContentType)
}

// GetJSON downloads the object under key and decodes it into dest.
func (s *Storage) GetJSON(ctx context.Context, key string, dest any) error {
	r, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()
	return json.NewDecoder(r).Decode(dest)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Close releases the backend.
func (s *Storage) Close() error {
	return s.backend.Close()
}
