package cache

import (
	"context"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache backed by a concurrent map.
type Memory struct {
	entries *xsync.MapOf[string, memoryEntry]
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: xsync.NewMapOf[memoryEntry](), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := m.entries.Load(key)
	if !ok {
		return nil, ErrMiss
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.entries.Delete(key)
		return nil, ErrMiss
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries.Store(key, entry)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.entries.Delete(key)
	}
	return nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	m.entries.Range(func(key string, _ memoryEntry) bool {
		if strings.HasPrefix(key, prefix) {
			m.entries.Delete(key)
		}
		return true
	})
	return nil
}
