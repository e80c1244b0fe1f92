package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Memory is an in-process ObjectStore for local development and tests.
type Memory struct {
	mu      sync.RWMutex
	bucket  string
	scheme  string
	baseURL string
	objects map[string]memObject
	now     func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryScheme sets the scheme URI reports (default s3).
func WithMemoryScheme(scheme string) MemoryOption {
	return func(m *Memory) {
		m.scheme = scheme
	}
}

// WithMemoryBaseURL sets the public URL prefix.
func WithMemoryBaseURL(base string) MemoryOption {
	return func(m *Memory) {
		m.baseURL = base
	}
}

// WithMemoryClock overrides the clock used for modification times.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-memory store for bucket.
func NewMemory(bucket string, opts ...MemoryOption) *Memory {
	m := &Memory{
		bucket:  bucket,
		scheme:  "s3",
		baseURL: "http://localhost/" + bucket,
		objects: make(map[string]memObject),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Bucket() string { return m.bucket }

func (m *Memory) Put(ctx context.Context, key, localPath, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", localPath, err)
	}
	return m.PutBytes(ctx, key, data, contentType)
}

// PutBytes stores data under key directly.
func (m *Memory) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: buf, contentType: contentType, modified: m.now()}
	return nil
}

func (m *Memory) Get(ctx context.Context, key, localPath string) error {
	data, _, err := m.Object(key)
	if err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o600)
}

// Object returns the stored bytes and content type for key.
func (m *Memory) Object(key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return obj.data, obj.contentType, nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ObjectInfo
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Keys returns every stored key in sorted order.
func (m *Memory) Keys() []string {
	infos, _ := m.List(context.Background(), "")
	keys := make([]string, len(infos))
	for i, info := range infos {
		keys[i] = info.Key
	}
	return keys
}

func (m *Memory) URI(key string) string {
	return m.scheme + "://" + m.bucket + "/" + key
}

func (m *Memory) PublicURL(key string) string {
	return joinURL(m.baseURL, key)
}
