package googledrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/smartlens/drive-backend/internal/adapter"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderFields     = "id, name, parents, webViewLink"
	metadataFields   = "id, name, mimeType, parents, trashed, modifiedTime"
	permissionFields = "nextPageToken, permissions(id, emailAddress, role, type)"
)

// escapeQuery escapes a literal for use inside a single-quoted Drive query string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// folderQuery builds the exact-name child folder query.
func folderQuery(parentID, name string) string {
	return fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(name), escapeQuery(parentID), adapter.FolderMimeType)
}

// DriveAdapter implements adapter.DriveAPI for Google Drive.
// It is built once per process around the service identity's client.
type DriveAdapter struct {
	service *drive.Service
	retry   RetryPolicy
	sleep   sleepFunc
}

// NewDriveAdapter creates a new DriveAdapter.
// client should be an authenticated http.Client carrying the service identity.
func NewDriveAdapter(ctx context.Context, client *http.Client, retry RetryPolicy, opts ...option.ClientOption) (*DriveAdapter, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}
	return &DriveAdapter{service: srv, retry: retry, sleep: gax.Sleep}, nil
}

// SearchFolders returns non-trashed folders named exactly name under parentID.
func (d *DriveAdapter) SearchFolders(ctx context.Context, parentID, name string) ([]adapter.Folder, error) {
	q := folderQuery(parentID, name)
	r, err := executeWithRetry(ctx, d.retry, d.sleep, func() (*drive.FileList, error) {
		return d.service.Files.List().
			Q(q).
			Fields(googleapi.Field("files(" + folderFields + ")")).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, fmt.Errorf("unable to search folder %q: %w", name, err)
	}

	folders := make([]adapter.Folder, 0, len(r.Files))
	for _, f := range r.Files {
		folders = append(folders, toFolder(f, parentID))
	}
	return folders, nil
}

// CreateFolder creates a folder named name under parentID.
// The id is reserved up front, so a retry after a create that committed but
// lost its response finds the folder instead of making a second one.
func (d *DriveAdapter) CreateFolder(ctx context.Context, name, parentID string) (*adapter.Folder, error) {
	id, err := d.reserveID(ctx)
	if err != nil {
		return nil, err
	}
	f := &drive.File{
		Id:       id,
		Name:     name,
		MimeType: adapter.FolderMimeType,
		Parents:  []string{parentID},
	}

	attempt := 0
	res, err := executeWithRetry(ctx, d.retry, d.sleep, func() (*drive.File, error) {
		attempt++
		created, err := d.service.Files.Create(f).
			Fields(folderFields).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if attempt > 1 && isConflict(err) {
			return d.service.Files.Get(id).
				Fields(folderFields).
				SupportsAllDrives(true).
				Context(ctx).
				Do()
		}
		return created, err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("parent %s: %w", parentID, adapter.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to create folder %q: %w", name, err)
	}

	folder := toFolder(res, parentID)
	return &folder, nil
}

func (d *DriveAdapter) reserveID(ctx context.Context) (string, error) {
	ids, err := executeWithRetry(ctx, d.retry, d.sleep, func() (*drive.GeneratedIds, error) {
		return d.service.Files.GenerateIds().
			Count(1).
			Space("drive").
			Type("files").
			Context(ctx).
			Do()
	})
	if err != nil {
		return "", fmt.Errorf("unable to reserve folder id: %w", err)
	}
	if len(ids.Ids) == 0 {
		return "", errors.New("unable to reserve folder id: no id returned")
	}
	return ids.Ids[0], nil
}

// GetMetadata fetches metadata for a liveness check.
func (d *DriveAdapter) GetMetadata(ctx context.Context, id string) (*adapter.Metadata, error) {
	f, err := executeWithRetry(ctx, d.retry, d.sleep, func() (*drive.File, error) {
		return d.service.Files.Get(id).
			Fields(metadataFields).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	})
	if err != nil {
		if isNotFound(err) {
			return nil, adapter.ErrNotFound
		}
		return nil, fmt.Errorf("unable to get metadata for %s: %w", id, err)
	}

	modTime, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return &adapter.Metadata{
		ID:           f.Id,
		Name:         f.Name,
		MIMEType:     f.MimeType,
		Parents:      f.Parents,
		Trashed:      f.Trashed,
		ModifiedTime: modTime,
	}, nil
}

// GrantAccess creates a user permission. Drive updates an existing grant for the same email.
func (d *DriveAdapter) GrantAccess(ctx context.Context, resourceID, email, role string) error {
	perm := &drive.Permission{
		Type:         "user",
		Role:         role,
		EmailAddress: email,
	}

	_, err := executeWithRetry(ctx, d.retry, d.sleep, func() (*drive.Permission, error) {
		return d.service.Permissions.Create(resourceID, perm).
			SendNotificationEmail(false).
			SupportsAllDrives(true).
			Fields("id").
			Context(ctx).
			Do()
	})
	if err != nil {
		// Callers report the email and resource; only the cause is returned.
		if isBadRequest(err) {
			return fmt.Errorf("%w: %v", adapter.ErrInvalidIdentity, err)
		}
		if isNotFound(err) {
			return adapter.ErrNotFound
		}
		return fmt.Errorf("unable to create permission: %w", err)
	}
	return nil
}

// ListAccessGrants pages through every permission on resourceID.
func (d *DriveAdapter) ListAccessGrants(ctx context.Context, resourceID string) ([]adapter.Grant, error) {
	var grants []adapter.Grant
	pageToken := ""
	for {
		token := pageToken
		r, err := executeWithRetry(ctx, d.retry, d.sleep, func() (*drive.PermissionList, error) {
			call := d.service.Permissions.List(resourceID).
				Fields(permissionFields).
				SupportsAllDrives(true).
				Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		})
		if err != nil {
			if isNotFound(err) {
				return nil, adapter.ErrNotFound
			}
			return nil, fmt.Errorf("unable to list permissions on %s: %w", resourceID, err)
		}

		for _, p := range r.Permissions {
			grants = append(grants, adapter.Grant{
				ID:    p.Id,
				Email: p.EmailAddress,
				Role:  p.Role,
				Type:  p.Type,
			})
		}
		if r.NextPageToken == "" {
			return grants, nil
		}
		pageToken = r.NextPageToken
	}
}

// RevokeAccessGrant deletes a permission.
func (d *DriveAdapter) RevokeAccessGrant(ctx context.Context, resourceID, grantID string) error {
	_, err := executeWithRetry(ctx, d.retry, d.sleep, func() (struct{}, error) {
		return struct{}{}, d.service.Permissions.Delete(resourceID, grantID).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	})
	if err != nil {
		if isNotFound(err) {
			return adapter.ErrNotFound
		}
		return fmt.Errorf("unable to revoke %s on %s: %w", grantID, resourceID, err)
	}
	return nil
}

func toFolder(f *drive.File, fallbackParent string) adapter.Folder {
	parent := fallbackParent
	if len(f.Parents) > 0 {
		parent = f.Parents[0]
	}
	return adapter.Folder{
		ID:       f.Id,
		Name:     f.Name,
		ParentID: parent,
		ViewURL:  f.WebViewLink,
	}
}

func isNotFound(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusNotFound
	}
	return false
}

func isConflict(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusConflict
	}
	return false
}

func isBadRequest(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusBadRequest
	}
	return false
}
