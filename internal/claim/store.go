// Package claim reserves folder creation slots so that concurrent resolvers
// for the same (parent, name) pair converge on a single folder.
package claim

import (
	"context"
	"errors"
	"time"

	"github.com/smartlens/drive-backend/internal/model"
)

// DefaultTTL bounds how long a claim may stay pending before others may take it over.
const DefaultTTL = 30 * time.Second

// ErrNotOwner is returned when committing a claim held by someone else.
var ErrNotOwner = errors.New("claim is held by another owner")

// Store defines create-if-absent claim records.
type Store interface {
	// Claim tries to reserve key for owner. It returns the winning claim and
	// whether owner holds it. A pending claim past its expiry can be taken over.
	Claim(ctx context.Context, key, owner string) (*model.FolderClaim, bool, error)

	// Commit records the created folder id on a claim owned by owner.
	Commit(ctx context.Context, key, owner, folderID string) error

	// Get returns the current claim for key, or nil.
	Get(ctx context.Context, key string) (*model.FolderClaim, error)

	// Release drops a pending claim owned by owner. Releasing a committed or foreign claim is a no-op.
	Release(ctx context.Context, key, owner string) error

	// Discard drops a committed claim whose folder turned out to be dead.
	Discard(ctx context.Context, key, folderID string) error
}

// Key builds the claim key of a (parent, name) pair.
func Key(parentID, name string) string {
	return parentID + "/" + name
}
