package drivestructure

import (
	"context"

	"github.com/smartlens/drive-backend/internal/adapter"
	"github.com/smartlens/drive-backend/internal/model"
)

// SystemStructure is the resolved global skeleton.
type SystemStructure struct {
	model.SystemFolders
	Failures PartialFailure `json:"failedGrants,omitempty"`
}

// EnsureSystemStructure makes sure the root and its five area folders exist,
// top-down, and grants the admin email writer on the root.
// The skeleton is re-walked on every call; the folder index keeps that cheap.
func (s *Service) EnsureSystemStructure(ctx context.Context) (*SystemStructure, error) {
	rootID, err := s.ensureRoot(ctx)
	if err != nil {
		return nil, err
	}

	out := &SystemStructure{}
	out.RootID = rootID
	children := []struct {
		name string
		dst  *string
	}{
		{SharedName, &out.SharedID},
		{AICacheName, &out.AICacheID},
		{UsersName, &out.UsersID},
		{ThreadsName, &out.ThreadsID},
		{PeopleName, &out.PeopleID},
	}
	for _, c := range children {
		id, err := s.resolver.FindOrCreate(ctx, c.name, rootID)
		if err != nil {
			return nil, err
		}
		*c.dst = id
	}

	if s.opts.AdminEmail != "" {
		if err := s.access.Grant(ctx, rootID, s.opts.AdminEmail, adapter.RoleWriter); err != nil {
			if s.opts.RequireAdminGrant {
				s.log.Error("admin grant failed", "resource", rootID, "email", s.opts.AdminEmail, "error", err)
				return nil, &ProvisioningError{Op: OpAdminGrant, Name: s.opts.RootName, Parent: adapter.RootAlias, Err: err}
			}
			s.log.Warn("admin grant failed", "resource", rootID, "email", s.opts.AdminEmail, "error", err)
			out.Failures = append(out.Failures, AccessSyncWarning{
				Op: OpAdminGrant, ResourceID: rootID, Email: s.opts.AdminEmail, Role: adapter.RoleWriter, Err: err,
			})
		}
	}
	return out, nil
}

func (s *Service) ensureRoot(ctx context.Context) (string, error) {
	if id := s.opts.RootFolderID; id != "" {
		alive, err := s.resolver.alive(ctx, id)
		if err == nil && alive {
			return id, nil
		}
		s.log.Warn("configured root folder unusable, resolving by name", "id", id, "name", s.opts.RootName, "error", err)
	}
	return s.resolver.FindOrCreate(ctx, s.opts.RootName, adapter.RootAlias)
}
