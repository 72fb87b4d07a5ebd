package claim

import (
	"context"
	"sync"
	"time"

	"github.com/smartlens/drive-backend/internal/model"
)

// MemoryStore implements Store using an in-memory map, for tests and DEV_MODE.
type MemoryStore struct {
	claims map[string]*model.FolderClaim
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore creates a new MemoryStore with the given pending TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		claims: make(map[string]*model.FolderClaim),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *MemoryStore) Claim(ctx context.Context, key, owner string) (*model.FolderClaim, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.claims[key]; ok {
		// Committed claims never expire; pending ones do.
		if existing.Committed() || existing.ExpiresAt > now.Unix() {
			c := *existing
			return &c, false, nil
		}
	}

	c := &model.FolderClaim{
		ClaimKey:  key,
		Owner:     owner,
		ExpiresAt: now.Add(m.ttl).Unix(),
	}
	m.claims[key] = c
	out := *c
	return &out, true, nil
}

func (m *MemoryStore) Commit(ctx context.Context, key, owner, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.claims[key]
	if !ok || existing.Owner != owner {
		return ErrNotOwner
	}
	existing.FolderID = folderID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*model.FolderClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.claims[key]
	if !ok {
		return nil, nil
	}
	c := *existing
	return &c, nil
}

func (m *MemoryStore) Release(ctx context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.claims[key]; ok && existing.Owner == owner && !existing.Committed() {
		delete(m.claims, key)
	}
	return nil
}

func (m *MemoryStore) Discard(ctx context.Context, key, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.claims[key]; ok && existing.FolderID == folderID {
		delete(m.claims, key)
	}
	return nil
}
