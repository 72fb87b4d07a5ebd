package drivestructure

import (
	"context"
	"errors"

	"github.com/smartlens/drive-backend/internal/adapter"
)

// EntityFolder is the result of an entity ensurer.
type EntityFolder struct {
	ID       string
	Name     string
	ParentID string
	Failures PartialFailure
}

// EnsureGroupDriveStructure resolves "{name}_{chatID}" under Shared and shares it with emails.
func (s *Service) EnsureGroupDriveStructure(ctx context.Context, chatID, name string, emails []string) (*EntityFolder, error) {
	if chatID == "" {
		return nil, &ProvisioningError{Op: OpResolve, Name: name, Err: ErrMissingID}
	}
	return s.ensureEntity(ctx, GroupFolderName(name, chatID), func(sys *SystemStructure) string { return sys.SharedID }, emails)
}

// EnsureDMDriveStructure resolves "DM_{min}_{max}" under People. The name depends
// only on the user ids, so renames and argument order do not matter.
func (s *Service) EnsureDMDriveStructure(ctx context.Context, uidA, uidB string, emails []string) (*EntityFolder, error) {
	if uidA == "" || uidB == "" {
		return nil, &ProvisioningError{Op: OpResolve, Name: "DM", Err: ErrMissingID}
	}
	return s.ensureEntity(ctx, DMFolderName(uidA, uidB), func(sys *SystemStructure) string { return sys.PeopleID }, emails)
}

// EnsureTaskDriveStructure resolves "Task_{title}_{taskID[:8]}" under Threads and
// shares it with emails and the admin email.
func (s *Service) EnsureTaskDriveStructure(ctx context.Context, taskID, title string, emails []string) (*EntityFolder, error) {
	if taskID == "" {
		return nil, &ProvisioningError{Op: OpResolve, Name: title, Err: ErrMissingID}
	}
	return s.ensureEntity(ctx, TaskFolderName(title, taskID), func(sys *SystemStructure) string { return sys.ThreadsID }, s.withAdmin(emails))
}

// EnsureThreadDriveStructure resolves "{title}_{threadID}" under Threads and
// shares it with emails and the admin email.
func (s *Service) EnsureThreadDriveStructure(ctx context.Context, threadID, title string, emails []string) (*EntityFolder, error) {
	if threadID == "" {
		return nil, &ProvisioningError{Op: OpResolve, Name: title, Err: ErrMissingID}
	}
	return s.ensureEntity(ctx, ThreadFolderName(title, threadID), func(sys *SystemStructure) string { return sys.ThreadsID }, s.withAdmin(emails))
}

func (s *Service) ensureEntity(ctx context.Context, name string, area func(*SystemStructure) string, emails []string) (*EntityFolder, error) {
	sys, err := s.EnsureSystemStructure(ctx)
	if err != nil {
		return nil, err
	}
	parentID := area(sys)

	id, err := s.resolver.FindOrCreate(ctx, name, parentID)
	if err != nil {
		return nil, err
	}

	synced := s.syncAccess(ctx, id, emails)
	if synced.folderGone() {
		// Deleted between resolution and sharing; resolve once more.
		s.log.Info("folder vanished during access sync, re-resolving", "name", name, "parent", parentID, "id", id)
		s.resolver.Forget(ctx, name, parentID)
		if id, err = s.resolver.FindOrCreate(ctx, name, parentID); err != nil {
			return nil, err
		}
		synced = s.syncAccess(ctx, id, emails)
	}

	failures := append(PartialFailure{}, sys.Failures...)
	failures = append(failures, synced...)
	return &EntityFolder{ID: id, Name: name, ParentID: parentID, Failures: failures}, nil
}

func (s *Service) withAdmin(emails []string) []string {
	if s.opts.AdminEmail == "" {
		return emails
	}
	return append(append([]string{}, emails...), s.opts.AdminEmail)
}

// folderGone reports whether a failure shows the shared resource itself no longer exists.
func (p PartialFailure) folderGone() bool {
	for _, w := range p {
		if (w.Op == OpGrant || w.Op == OpListGrants) && errors.Is(w.Err, adapter.ErrNotFound) {
			return true
		}
	}
	return false
}
