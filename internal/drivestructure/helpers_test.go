package drivestructure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/smartlens/drive-backend/internal/adapter"
	"github.com/smartlens/drive-backend/internal/adapter/memory"
	"github.com/smartlens/drive-backend/internal/profile"
)

// flakyDrive fails selected calls on top of a MemoryDrive.
type flakyDrive struct {
	*memory.MemoryDrive

	mu        sync.Mutex
	createErr error
	listErr   error
	revokeErr error
	// beforeGrant runs ahead of every grant, outside the memory drive's lock.
	beforeGrant func(resourceID string)
}

func (f *flakyDrive) GrantAccess(ctx context.Context, resourceID, email, role string) error {
	if f.beforeGrant != nil {
		f.beforeGrant(resourceID)
	}
	return f.MemoryDrive.GrantAccess(ctx, resourceID, email, role)
}

func (f *flakyDrive) CreateFolder(ctx context.Context, name, parentID string) (*adapter.Folder, error) {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryDrive.CreateFolder(ctx, name, parentID)
}

func (f *flakyDrive) ListAccessGrants(ctx context.Context, resourceID string) ([]adapter.Grant, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryDrive.ListAccessGrants(ctx, resourceID)
}

func (f *flakyDrive) RevokeAccessGrant(ctx context.Context, resourceID, grantID string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	return f.MemoryDrive.RevokeAccessGrant(ctx, resourceID, grantID)
}

func (f *flakyDrive) setCreateErr(err error) {
	f.mu.Lock()
	f.createErr = err
	f.mu.Unlock()
}

var errUnavailable = errors.New("drive unavailable")

func newTestService(t *testing.T, opts Options) (*Service, *memory.MemoryDrive, *profile.Store) {
	t.Helper()
	drive := memory.NewMemoryDrive()
	profiles := profile.NewStore(nil, "Users")
	return NewService(drive, profiles, opts), drive, profiles
}

func sameElements(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

func childNames(d *memory.MemoryDrive, parentID string) []string {
	var names []string
	for _, f := range d.Children(parentID) {
		names = append(names, f.Name)
	}
	return names
}
