package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
)

// ErrObjectNotFound is returned by MemoryStore for unknown keys.
var ErrObjectNotFound = errors.New("storage: object not found")

// MemoryObject is a stored object with its content type.
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps objects in process memory. It backs local development
// and tests.
type MemoryStore struct {
	bucket string

	mu      sync.RWMutex
	objects map[string]MemoryObject
}

func NewMemoryStore(bucket string) *MemoryStore {
	if strings.TrimSpace(bucket) == "" {
		bucket = "memory"
	}
	return &MemoryStore{bucket: bucket, objects: make(map[string]MemoryObject)}
}

func (m *MemoryStore) EnsureBucket(context.Context) error {
	return nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return errors.New("storage: size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = MemoryObject{Data: data, ContentType: contentType}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Bucket() string {
	return m.bucket
}

func (m *MemoryStore) Close() error {
	return nil
}

// Object returns the object stored under key.
func (m *MemoryStore) Object(key string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys lists stored keys in lexical order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
