// Package drivestructure provisions the SmartLens folder hierarchy on Drive
// and keeps folder sharing in line with application membership.
//
// Hierarchy:
//
//	SmartLens/
//	  Shared/   {group}_{chatId}
//	  AI_Cache/
//	  Users/    [User] {name}_{uid6}/Private/Contents
//	  Threads/  Task_{title}_{taskId8}, {title}_{threadId}
//	  People/   DM_{uidA}_{uidB}
package drivestructure

import (
	"context"
	"log/slog"
	"time"

	"github.com/smartlens/drive-backend/internal/adapter"
	"github.com/smartlens/drive-backend/internal/claim"
	"github.com/smartlens/drive-backend/internal/index"
	"github.com/smartlens/drive-backend/internal/logging"
	"github.com/smartlens/drive-backend/internal/model"
)

// ProfileStore reads and writes the folder ids cached per user.
type ProfileStore interface {
	GetDriveRecord(ctx context.Context, userID string) (*model.UserDriveRecord, error)
	PutDriveRecord(ctx context.Context, userID string, record model.UserDriveRecord) error
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	// RootFolderID is used as the root when it is live; otherwise RootName is resolved under "root".
	RootFolderID string
	RootName     string

	// AdminEmail receives writer on the root and on every task and thread folder.
	AdminEmail string
	// ServiceEmail is the identity owning the folders; reconciliation never revokes it.
	ServiceEmail string

	Policy            AccessPolicy
	RequireAdminGrant bool
	GrantConcurrency  int

	Index     index.Index
	Claims    claim.Store
	ClaimPoll time.Duration

	Logger *slog.Logger
}

// Service composes the resolver and access sync into the ensurers.
type Service struct {
	drive    adapter.DriveAPI
	profiles ProfileStore
	resolver *Resolver
	access   *AccessSync
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

// NewService creates a Service over drive. It is built once per process and shared.
func NewService(drive adapter.DriveAPI, profiles ProfileStore, opts Options) *Service {
	if opts.RootName == "" {
		opts.RootName = DefaultRootName
	}
	if opts.Policy == "" {
		opts.Policy = PolicyAdditive
	}
	if opts.GrantConcurrency < 1 {
		opts.GrantConcurrency = DefaultGrantConcurrency
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	return &Service{
		drive:    drive,
		profiles: profiles,
		resolver: NewResolver(drive, opts.Index, opts.Claims, opts.ClaimPoll, log.With("part", "resolver")),
		access:   NewAccessSync(drive, opts.GrantConcurrency, log.With("part", "access"), opts.ServiceEmail, opts.AdminEmail),
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Resolver exposes the folder resolver.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Access exposes the permission synchronizer.
func (s *Service) Access() *AccessSync {
	return s.access
}

// syncAccess applies the configured policy to the participant list of resourceID.
func (s *Service) syncAccess(ctx context.Context, resourceID string, emails []string) PartialFailure {
	if s.opts.Policy == PolicyReconcile {
		return s.access.Reconcile(ctx, resourceID, emails, adapter.RoleWriter)
	}
	return s.access.GrantAll(ctx, resourceID, emails, adapter.RoleWriter)
}

// RevokeAccess removes email's access to folderID.
func (s *Service) RevokeAccess(ctx context.Context, folderID, email string) error {
	return s.access.Revoke(ctx, folderID, email)
}
