package adapter

import (
	"context"
	"time"
)

// FolderMimeType is the mime type external storage uses for folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// RootAlias addresses the top of the service identity's own storage.
const RootAlias = "root"

// Access roles understood by the storage.
const (
	RoleReader    = "reader"
	RoleCommenter = "commenter"
	RoleWriter    = "writer"
	RoleOrganizer = "organizer"
	RoleOwner     = "owner"
)

// Folder is a folder in external storage.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
	ViewURL  string `json:"viewUrl,omitempty"`
}

// Metadata is what a liveness check learns about a resource.
type Metadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MIMEType     string    `json:"mimeType"`
	Parents      []string  `json:"parents,omitempty"`
	Trashed      bool      `json:"trashed"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// Grant is one access grant held by the storage for a resource.
type Grant struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"type"`
}

// DriveAPI is the surface of external storage the provisioning code uses.
// Every call runs under the service identity, never the acting end user.
type DriveAPI interface {
	// SearchFolders returns non-trashed folders named exactly name directly under parentID.
	SearchFolders(ctx context.Context, parentID, name string) ([]Folder, error)

	// CreateFolder creates a folder named name under parentID.
	CreateFolder(ctx context.Context, name, parentID string) (*Folder, error)

	// GetMetadata returns resource metadata, or ErrNotFound.
	GetMetadata(ctx context.Context, id string) (*Metadata, error)

	// GrantAccess gives email the role on resourceID. Granting twice is harmless.
	GrantAccess(ctx context.Context, resourceID, email, role string) error

	// ListAccessGrants lists the grants held on resourceID.
	ListAccessGrants(ctx context.Context, resourceID string) ([]Grant, error)

	// RevokeAccessGrant deletes one grant from resourceID.
	RevokeAccessGrant(ctx context.Context, resourceID, grantID string) error
}
