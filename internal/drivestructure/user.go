package drivestructure

import (
	"context"

	"github.com/smartlens/drive-backend/internal/adapter"
	"github.com/smartlens/drive-backend/internal/model"
)

// UserStructure is a user's resolved private tree.
type UserStructure struct {
	Record model.UserDriveRecord
	// Persisted is true when the record changed and was written back.
	Persisted bool
	Failures  PartialFailure
}

// EnsureUserDriveStructure makes sure "[User] {name}_{uid}/Private/Contents"
// exists for userID and that email holds writer on it. Cached ids are
// liveness-checked and only dead or missing ones are re-resolved.
func (s *Service) EnsureUserDriveStructure(ctx context.Context, userID, email, displayName string) (*UserStructure, error) {
	if userID == "" {
		return nil, &ProvisioningError{Op: OpResolve, Err: ErrMissingID}
	}

	sys, err := s.EnsureSystemStructure(ctx)
	if err != nil {
		return nil, err
	}
	out := &UserStructure{Failures: sys.Failures}

	var cached model.UserDriveRecord
	prev, err := s.profiles.GetDriveRecord(ctx, userID)
	if err != nil {
		return nil, &ProvisioningError{Op: OpProfile, Name: userID, Err: err}
	}
	if prev != nil {
		cached = *prev
	}

	rootID, rootChanged, err := s.ensureCached(ctx, cached.RootFolderID, UserFolderName(displayName, userID), sys.UsersID, false)
	if err != nil {
		return nil, err
	}
	privateID, privateChanged, err := s.ensureCached(ctx, cached.PrivateFolderID, PrivateName, rootID, rootChanged)
	if err != nil {
		return nil, err
	}
	contentID, _, err := s.ensureCached(ctx, cached.ContentRootFolderID, ContentsName, privateID, privateChanged)
	if err != nil {
		return nil, err
	}

	out.Record = model.UserDriveRecord{
		RootFolderID:        rootID,
		PrivateFolderID:     privateID,
		ContentRootFolderID: contentID,
		UpdatedAt:           cached.UpdatedAt,
	}

	if email != "" {
		if err := s.access.Grant(ctx, rootID, email, adapter.RoleWriter); err != nil {
			s.log.Warn("user grant failed", "user", userID, "resource", rootID, "email", email, "error", err)
			out.Failures = append(out.Failures, AccessSyncWarning{
				Op: OpGrant, ResourceID: rootID, Email: email, Role: adapter.RoleWriter, Err: err,
			})
		}
	}

	if prev == nil || !prev.SameFolders(out.Record) {
		if err := s.profiles.PutDriveRecord(ctx, userID, out.Record); err != nil {
			// The folders exist; the next call re-resolves them by name.
			s.log.Error("saving drive record failed", "user", userID, "error", err)
		} else {
			out.Persisted = true
			out.Record.UpdatedAt = s.now().UTC()
		}
	}
	return out, nil
}

// ensureCached keeps cachedID when it is still live under an unchanged parent,
// and resolves name under parentID otherwise. changed reports a new id.
func (s *Service) ensureCached(ctx context.Context, cachedID, name, parentID string, parentChanged bool) (string, bool, error) {
	if cachedID != "" && !parentChanged {
		alive, err := s.resolver.alive(ctx, cachedID)
		if err != nil {
			return "", false, &ProvisioningError{Op: OpLiveness, Name: name, Parent: parentID, Err: err}
		}
		if alive {
			return cachedID, false, nil
		}
		s.log.Info("cached folder is gone, re-resolving", "name", name, "id", cachedID)
		s.resolver.Forget(ctx, name, parentID)
	}

	id, err := s.resolver.FindOrCreate(ctx, name, parentID)
	if err != nil {
		return "", false, err
	}
	return id, id != cachedID, nil
}
