package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartlens/drive-backend/internal/adapter"
)

type node struct {
	id       string
	name     string
	parentID string
	mimeType string
	trashed  bool
	created  time.Time
	modified time.Time
}

type grant struct {
	id    string
	email string
	role  string
}

// Counters records how many external calls a MemoryDrive has served.
type Counters struct {
	Searches int
	Creates  int
	Gets     int
	Grants   int
	Lists    int
	Revokes  int
}

// MemoryDrive implements adapter.DriveAPI with in-process maps.
// It backs DEV_MODE and the provisioning tests.
type MemoryDrive struct {
	mu       sync.Mutex
	nodes    map[string]*node
	grants   map[string][]grant
	counters Counters
	now      func() time.Time

	// SearchLag hides folders younger than the lag from SearchFolders,
	// the way an eventually consistent search index would.
	SearchLag time.Duration

	// FailGrant, when set, is consulted before every grant; a non-nil result fails the grant.
	FailGrant func(resourceID, email string) error
}

// NewMemoryDrive creates an empty MemoryDrive whose "root" alias already exists.
func NewMemoryDrive() *MemoryDrive {
	now := time.Now()
	return &MemoryDrive{
		nodes: map[string]*node{
			adapter.RootAlias: {id: adapter.RootAlias, name: "My Drive", mimeType: adapter.FolderMimeType, created: now, modified: now},
		},
		grants: make(map[string][]grant),
		now:    time.Now,
	}
}

func (m *MemoryDrive) SearchFolders(ctx context.Context, parentID, name string) ([]adapter.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Searches++

	visibleBefore := m.now().Add(-m.SearchLag)
	var folders []adapter.Folder
	for _, n := range m.nodes {
		if n.parentID != parentID || n.name != name || n.trashed || n.mimeType != adapter.FolderMimeType {
			continue
		}
		if m.SearchLag > 0 && n.created.After(visibleBefore) {
			continue
		}
		folders = append(folders, n.folder())
	}
	return folders, nil
}

func (m *MemoryDrive) CreateFolder(ctx context.Context, name, parentID string) (*adapter.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Creates++

	if _, ok := m.nodes[parentID]; !ok {
		return nil, fmt.Errorf("parent %s: %w", parentID, adapter.ErrNotFound)
	}
	now := m.now()
	n := &node{
		id:       uuid.New().String(),
		name:     name,
		parentID: parentID,
		mimeType: adapter.FolderMimeType,
		created:  now,
		modified: now,
	}
	m.nodes[n.id] = n
	f := n.folder()
	return &f, nil
}

func (m *MemoryDrive) GetMetadata(ctx context.Context, id string) (*adapter.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Gets++

	n, ok := m.nodes[id]
	if !ok {
		return nil, adapter.ErrNotFound
	}
	var parents []string
	if n.parentID != "" {
		parents = []string{n.parentID}
	}
	return &adapter.Metadata{
		ID:           n.id,
		Name:         n.name,
		MIMEType:     n.mimeType,
		Parents:      parents,
		Trashed:      n.trashed,
		ModifiedTime: n.modified,
	}, nil
}

func (m *MemoryDrive) GrantAccess(ctx context.Context, resourceID, email, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Grants++

	if m.FailGrant != nil {
		if err := m.FailGrant(resourceID, email); err != nil {
			return err
		}
	}
	if _, ok := m.nodes[resourceID]; !ok {
		return adapter.ErrNotFound
	}
	if !strings.Contains(email, "@") {
		return adapter.ErrInvalidIdentity
	}

	list := m.grants[resourceID]
	for i, g := range list {
		if strings.EqualFold(g.email, email) {
			list[i].role = role
			return nil
		}
	}
	m.grants[resourceID] = append(list, grant{id: uuid.New().String(), email: email, role: role})
	return nil
}

func (m *MemoryDrive) ListAccessGrants(ctx context.Context, resourceID string) ([]adapter.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Lists++

	if _, ok := m.nodes[resourceID]; !ok {
		return nil, adapter.ErrNotFound
	}
	grants := make([]adapter.Grant, 0, len(m.grants[resourceID]))
	for _, g := range m.grants[resourceID] {
		grants = append(grants, adapter.Grant{ID: g.id, Email: g.email, Role: g.role, Type: "user"})
	}
	return grants, nil
}

func (m *MemoryDrive) RevokeAccessGrant(ctx context.Context, resourceID, grantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Revokes++

	list := m.grants[resourceID]
	for i, g := range list {
		if g.id == grantID {
			m.grants[resourceID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return adapter.ErrNotFound
}

// --- Test helpers ---

// Delete removes a resource and everything below it, as an external deletion would.
func (m *MemoryDrive) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(id)
}

func (m *MemoryDrive) deleteLocked(id string) {
	var children []string
	for cid, n := range m.nodes {
		if n.parentID == id {
			children = append(children, cid)
		}
	}
	delete(m.nodes, id)
	delete(m.grants, id)
	for _, cid := range children {
		m.deleteLocked(cid)
	}
}

// Trash marks a resource as trashed.
func (m *MemoryDrive) Trash(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[id]; ok {
		n.trashed = true
	}
}

// Counters returns a snapshot of the call counters.
func (m *MemoryDrive) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

// Children lists the folders directly under parentID regardless of SearchLag.
func (m *MemoryDrive) Children(parentID string) []adapter.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()

	var folders []adapter.Folder
	for _, n := range m.nodes {
		if n.parentID == parentID && !n.trashed {
			folders = append(folders, n.folder())
		}
	}
	return folders
}

// GrantedEmails returns the emails holding any grant on resourceID.
func (m *MemoryDrive) GrantedEmails(resourceID string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.grants[resourceID]))
	for _, g := range m.grants[resourceID] {
		out[g.email] = g.role
	}
	return out
}

func (n *node) folder() adapter.Folder {
	return adapter.Folder{
		ID:       n.id,
		Name:     n.name,
		ParentID: n.parentID,
		ViewURL:  "https://drive.google.com/drive/folders/" + n.id,
	}
}
