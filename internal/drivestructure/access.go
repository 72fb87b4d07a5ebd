package drivestructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smartlens/drive-backend/internal/adapter"
	"golang.org/x/sync/errgroup"
)

// AccessPolicy selects how an ensurer applies a participant list.
type AccessPolicy string

const (
	// PolicyAdditive grants every participant and never revokes.
	PolicyAdditive AccessPolicy = "additive"
	// PolicyReconcile also revokes grants of identities no longer listed,
	// at the cost of one listing call per sync.
	PolicyReconcile AccessPolicy = "reconcile"
)

// DefaultGrantConcurrency bounds simultaneous grant calls per resource.
const DefaultGrantConcurrency = 8

// AccessSync grants and revokes per-identity roles on Drive resources.
type AccessSync struct {
	drive       adapter.DriveAPI
	concurrency int
	protected   map[string]bool
	log         *slog.Logger
}

// NewAccessSync creates an AccessSync. Reconcile never revokes the protected emails.
func NewAccessSync(drive adapter.DriveAPI, concurrency int, log *slog.Logger, protected ...string) *AccessSync {
	if concurrency < 1 {
		concurrency = DefaultGrantConcurrency
	}
	p := make(map[string]bool, len(protected))
	for _, e := range protected {
		if e = normalizeEmail(e); e != "" {
			p[e] = true
		}
	}
	return &AccessSync{drive: drive, concurrency: concurrency, protected: p, log: log}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Grant gives email role on resourceID. Granting twice leaves a single grant.
// Errors are returned as the drive reports them; callers wrap them in an AccessSyncWarning.
func (a *AccessSync) Grant(ctx context.Context, resourceID, email, role string) error {
	return a.drive.GrantAccess(ctx, resourceID, email, role)
}

// Revoke removes every grant email holds on resourceID. It is a no-op when there is none.
// Protected emails are refused with ErrProtectedIdentity.
func (a *AccessSync) Revoke(ctx context.Context, resourceID, email string) error {
	if a.protected[normalizeEmail(email)] {
		return fmt.Errorf("revoke %s on %s: %w", email, resourceID, ErrProtectedIdentity)
	}
	grants, err := a.drive.ListAccessGrants(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("list grants on %s: %w", resourceID, err)
	}
	want := normalizeEmail(email)
	for _, g := range grants {
		if normalizeEmail(g.Email) != want {
			continue
		}
		if err := a.drive.RevokeAccessGrant(ctx, resourceID, g.ID); err != nil && !errors.Is(err, adapter.ErrNotFound) {
			return fmt.Errorf("revoke %s on %s: %w", email, resourceID, err)
		}
		a.log.Info("access revoked", "resource", resourceID, "email", email)
	}
	return nil
}

// GrantAll grants role to every email concurrently. Failures are collected, not returned.
func (a *AccessSync) GrantAll(ctx context.Context, resourceID string, emails []string, role string) PartialFailure {
	return a.apply(ctx, resourceID, role, uniqueEmails(emails), nil)
}

// Reconcile makes the user grants on resourceID match emails: missing ones are
// granted, extra ones revoked. Owners and protected emails are never revoked.
// If the current grants cannot be listed it degrades to GrantAll.
func (a *AccessSync) Reconcile(ctx context.Context, resourceID string, emails []string, role string) PartialFailure {
	desired := uniqueEmails(emails)

	current, err := a.drive.ListAccessGrants(ctx, resourceID)
	if err != nil {
		a.log.Warn("listing grants failed, granting only", "resource", resourceID, "error", err)
		failures := PartialFailure{{Op: OpListGrants, ResourceID: resourceID, Err: err}}
		return append(failures, a.apply(ctx, resourceID, role, desired, nil)...)
	}

	want := make(map[string]bool, len(desired))
	for _, e := range desired {
		want[normalizeEmail(e)] = true
	}
	have := make(map[string]adapter.Grant, len(current))
	for _, g := range current {
		have[normalizeEmail(g.Email)] = g
	}

	var toGrant []string
	for _, e := range desired {
		g, ok := have[normalizeEmail(e)]
		if !ok || !satisfies(g.Role, role) {
			toGrant = append(toGrant, e)
		}
	}
	var toRevoke []adapter.Grant
	for _, g := range current {
		e := normalizeEmail(g.Email)
		if e == "" || want[e] || a.protected[e] || g.Role == adapter.RoleOwner || g.Type != "user" {
			continue
		}
		toRevoke = append(toRevoke, g)
	}
	return a.apply(ctx, resourceID, role, toGrant, toRevoke)
}

// apply runs grants and revokes with bounded concurrency.
func (a *AccessSync) apply(ctx context.Context, resourceID, role string, grants []string, revokes []adapter.Grant) PartialFailure {
	results := make([]*AccessSyncWarning, len(grants)+len(revokes))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, email := range grants {
		g.Go(func() error {
			if err := a.drive.GrantAccess(ctx, resourceID, email, role); err != nil {
				a.log.Warn("grant failed", "resource", resourceID, "email", email, "role", role, "error", err)
				results[i] = &AccessSyncWarning{Op: OpGrant, ResourceID: resourceID, Email: email, Role: role, Err: err}
			}
			return nil
		})
	}
	for j, grant := range revokes {
		i := len(grants) + j
		g.Go(func() error {
			err := a.drive.RevokeAccessGrant(ctx, resourceID, grant.ID)
			if err != nil && !errors.Is(err, adapter.ErrNotFound) {
				a.log.Warn("revoke failed", "resource", resourceID, "email", grant.Email, "error", err)
				results[i] = &AccessSyncWarning{Op: OpRevoke, ResourceID: resourceID, Email: grant.Email, Role: grant.Role, Err: err}
				return nil
			}
			a.log.Info("access revoked", "resource", resourceID, "email", grant.Email)
			return nil
		})
	}
	g.Wait()

	var failures PartialFailure
	for _, w := range results {
		if w != nil {
			failures = append(failures, *w)
		}
	}
	return failures
}

var roleRank = map[string]int{
	adapter.RoleReader:    1,
	adapter.RoleCommenter: 2,
	adapter.RoleWriter:    3,
	adapter.RoleOrganizer: 4,
	adapter.RoleOwner:     5,
}

// satisfies reports whether a grant with role have already covers role want.
func satisfies(have, want string) bool {
	return roleRank[have] >= roleRank[want]
}

// uniqueEmails trims, drops empties and removes case-insensitive duplicates, keeping order.
func uniqueEmails(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		n := strings.ToLower(e)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, e)
	}
	return out
}
