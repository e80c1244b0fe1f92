// Package dedup is the gate that keeps redelivered webhook messages from
// being processed twice. Every backend performs check-and-insert as one
// atomic operation.
package dedup

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEmptyID is returned for a blank message id.
var ErrEmptyID = errors.New("message id is empty")

// Store records processed message ids.
type Store interface {
	// MarkIfNew records id and reports true if it had not been seen.
	MarkIfNew(ctx context.Context, id string) (bool, error)
	Close() error
}

// MemoryStore keeps ids in process memory. A zero TTL keeps ids for the
// life of the process.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) MarkIfNew(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if at, ok := m.seen[id]; ok && (m.ttl <= 0 || now.Sub(at) < m.ttl) {
		return false, nil
	}
	m.seen[id] = now
	return true, nil
}

// Len returns the number of tracked ids, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Prune drops expired ids.
func (m *MemoryStore) Prune(ctx context.Context) (int64, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for id, at := range m.seen {
		if now.Sub(at) >= m.ttl {
			delete(m.seen, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
