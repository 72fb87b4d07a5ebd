package index

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	folderID  string
	expiresAt time.Time
}

// MemoryIndex implements Index in process.
type MemoryIndex struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryIndex creates an in-memory index whose entries expire after ttl.
func NewMemoryIndex(ttl time.Duration) *MemoryIndex {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryIndex{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryIndex) Get(ctx context.Context, parentID, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := entryKey(parentID, name)
	e, ok := m.entries[k]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, k)
		return "", false, nil
	}
	return e.folderID, true, nil
}

func (m *MemoryIndex) Set(ctx context.Context, parentID, name, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryKey(parentID, name)] = memoryEntry{folderID: folderID, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, parentID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, entryKey(parentID, name))
	return nil
}
