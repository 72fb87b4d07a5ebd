package drivestructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartlens/drive-backend/internal/adapter"
	"github.com/smartlens/drive-backend/internal/claim"
	"github.com/smartlens/drive-backend/internal/index"
)

// DefaultClaimPoll is how often a resolver re-reads a pending claim held by someone else.
const DefaultClaimPoll = 250 * time.Millisecond

// Resolver finds or creates a uniquely named child folder.
// Index and Claims are optional; without Claims two concurrent resolvers
// for the same pair may both create.
type Resolver struct {
	drive  adapter.DriveAPI
	index  index.Index
	claims claim.Store
	poll   time.Duration
	log    *slog.Logger

	newOwner func() string
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewResolver creates a Resolver. idx and claims may be nil.
func NewResolver(drive adapter.DriveAPI, idx index.Index, claims claim.Store, poll time.Duration, log *slog.Logger) *Resolver {
	if poll <= 0 {
		poll = DefaultClaimPoll
	}
	return &Resolver{
		drive:    drive,
		index:    idx,
		claims:   claims,
		poll:     poll,
		log:      log,
		newOwner: uuid.NewString,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FindOrCreate returns the id of the folder named name directly under parentID,
// creating it when no such folder exists.
func (r *Resolver) FindOrCreate(ctx context.Context, name, parentID string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &ProvisioningError{Op: OpResolve, Name: name, Parent: parentID, Err: ErrEmptyName}
	}

	// Indexed ids can outlive the folder; a dead hit falls through to search.
	if id, ok := r.lookup(ctx, parentID, name); ok {
		alive, err := r.alive(ctx, id)
		if err != nil {
			return "", &ProvisioningError{Op: OpLiveness, Name: name, Parent: parentID, Err: err}
		}
		if alive {
			return id, nil
		}
		r.log.Info("indexed folder is gone, re-resolving", "name", name, "parent", parentID, "id", id)
		r.Forget(ctx, name, parentID)
	}

	found, err := r.drive.SearchFolders(ctx, parentID, name)
	if err != nil {
		return "", &ProvisioningError{Op: OpSearch, Name: name, Parent: parentID, Err: err}
	}
	if len(found) > 0 {
		if len(found) > 1 {
			r.log.Warn("duplicate folders found, using first", "name", name, "parent", parentID, "count", len(found))
		}
		r.remember(ctx, parentID, name, found[0].ID)
		return found[0].ID, nil
	}

	if r.claims == nil {
		return r.create(ctx, name, parentID)
	}
	return r.createClaimed(ctx, name, parentID)
}

// Forget drops the cached id of (parentID, name), e.g. after it was proven dead.
func (r *Resolver) Forget(ctx context.Context, name, parentID string) {
	if r.index == nil {
		return
	}
	if err := r.index.Delete(ctx, parentID, name); err != nil {
		r.log.Warn("folder index delete failed", "name", name, "parent", parentID, "error", err)
	}
}

func (r *Resolver) create(ctx context.Context, name, parentID string) (string, error) {
	f, err := r.drive.CreateFolder(ctx, name, parentID)
	if err != nil {
		r.log.Error("folder creation failed", "name", name, "parent", parentID, "error", err)
		return "", &ProvisioningError{Op: OpCreate, Name: name, Parent: parentID, Err: err}
	}
	r.log.Info("folder created", "name", name, "parent", parentID, "id", f.ID)
	r.remember(ctx, parentID, name, f.ID)
	return f.ID, nil
}

// createClaimed creates the folder only while holding the (parent, name) claim.
// Losers wait for the winner's commit and return the committed id.
func (r *Resolver) createClaimed(ctx context.Context, name, parentID string) (string, error) {
	key := claim.Key(parentID, name)
	owner := r.newOwner()

	for {
		c, won, err := r.claims.Claim(ctx, key, owner)
		if err != nil {
			return "", &ProvisioningError{Op: OpClaim, Name: name, Parent: parentID, Err: err}
		}

		if won {
			f, err := r.drive.CreateFolder(ctx, name, parentID)
			if err != nil {
				if rerr := r.claims.Release(ctx, key, owner); rerr != nil {
					r.log.Warn("claim release failed", "key", key, "error", rerr)
				}
				r.log.Error("folder creation failed", "name", name, "parent", parentID, "error", err)
				return "", &ProvisioningError{Op: OpCreate, Name: name, Parent: parentID, Err: err}
			}
			if err := r.claims.Commit(ctx, key, owner, f.ID); err != nil {
				// Our claim expired and was taken over; the folder exists regardless.
				r.log.Warn("claim commit failed", "key", key, "id", f.ID, "error", err)
			}
			r.log.Info("folder created", "name", name, "parent", parentID, "id", f.ID)
			r.remember(ctx, parentID, name, f.ID)
			return f.ID, nil
		}

		if c.Committed() {
			alive, err := r.alive(ctx, c.FolderID)
			if err != nil {
				return "", &ProvisioningError{Op: OpLiveness, Name: name, Parent: parentID, Err: err}
			}
			if alive {
				r.remember(ctx, parentID, name, c.FolderID)
				return c.FolderID, nil
			}
			r.log.Info("claimed folder is gone, reclaiming", "name", name, "parent", parentID, "id", c.FolderID)
			if err := r.claims.Discard(ctx, key, c.FolderID); err != nil {
				return "", &ProvisioningError{Op: OpClaim, Name: name, Parent: parentID, Err: err}
			}
			continue
		}

		if err := r.sleep(ctx, r.poll); err != nil {
			return "", &ProvisioningError{Op: OpClaim, Name: name, Parent: parentID, Err: err}
		}
	}
}

// alive reports whether id still refers to a non-trashed resource.
func (r *Resolver) alive(ctx context.Context, id string) (bool, error) {
	meta, err := r.drive.GetMetadata(ctx, id)
	if errors.Is(err, adapter.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s: %w", id, err)
	}
	return !meta.Trashed, nil
}

func (r *Resolver) lookup(ctx context.Context, parentID, name string) (string, bool) {
	if r.index == nil {
		return "", false
	}
	id, ok, err := r.index.Get(ctx, parentID, name)
	if err != nil {
		r.log.Warn("folder index lookup failed", "name", name, "parent", parentID, "error", err)
		return "", false
	}
	return id, ok
}

func (r *Resolver) remember(ctx context.Context, parentID, name, id string) {
	if r.index == nil {
		return
	}
	if err := r.index.Set(ctx, parentID, name, id); err != nil {
		r.log.Warn("folder index update failed", "name", name, "parent", parentID, "error", err)
	}
}
