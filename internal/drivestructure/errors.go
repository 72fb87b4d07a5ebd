package drivestructure

import (
	"errors"
	"fmt"
	"strings"
)

// Operations reported by ProvisioningError and AccessSyncWarning.
const (
	OpResolve    = "resolve"
	OpSearch     = "search"
	OpCreate     = "create"
	OpClaim      = "claim"
	OpLiveness   = "liveness"
	OpProfile    = "profile"
	OpAdminGrant = "admin-grant"
	OpGrant      = "grant"
	OpRevoke     = "revoke"
	OpListGrants = "list-grants"
)

var (
	ErrEmptyName = errors.New("folder name is empty")
	ErrMissingID = errors.New("entity id is empty")
	// ErrProtectedIdentity is returned when a revoke targets the service or admin identity.
	ErrProtectedIdentity = errors.New("identity is protected")
)

// ProvisioningError is a fatal failure to resolve or create a folder.
type ProvisioningError struct {
	Op     string
	Name   string
	Parent string
	Err    error
}

func (e *ProvisioningError) Error() string {
	if e.Name == "" && e.Parent == "" {
		return fmt.Sprintf("drive %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("drive %s %q under %s: %v", e.Op, e.Name, e.Parent, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// AccessSyncWarning is a non-fatal failure of one grant, revoke or listing.
type AccessSyncWarning struct {
	Op         string
	ResourceID string
	Email      string
	Role       string
	Err        error
}

func (w AccessSyncWarning) Error() string {
	if w.Email == "" {
		return fmt.Sprintf("%s on %s: %v", w.Op, w.ResourceID, w.Err)
	}
	return fmt.Sprintf("%s %s on %s: %v", w.Op, w.Email, w.ResourceID, w.Err)
}

func (w AccessSyncWarning) Unwrap() error {
	return w.Err
}

// PartialFailure lists the access changes that did not apply.
// An empty PartialFailure means every change went through.
type PartialFailure []AccessSyncWarning

func (p PartialFailure) Empty() bool {
	return len(p) == 0
}

// Emails returns the identities with at least one failed change, lower-cased and deduplicated.
func (p PartialFailure) Emails() []string {
	seen := make(map[string]bool, len(p))
	var out []string
	for _, w := range p {
		e := strings.ToLower(w.Email)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// Err joins every warning into one error, or returns nil.
func (p PartialFailure) Err() error {
	if len(p) == 0 {
		return nil
	}
	errs := make([]error, len(p))
	for i, w := range p {
		errs[i] = w
	}
	return errors.Join(errs...)
}
