package model

import "time"

// UserDriveRecord is the per-user cache of provisioned folder ids.
// It is stored on the user's profile document in DynamoDB.
type UserDriveRecord struct {
	RootFolderID        string    `json:"root_folder_id" dynamodbav:"root_folder_id"`                 // "[User] ..." folder
	PrivateFolderID     string    `json:"private_folder_id" dynamodbav:"private_folder_id"`           // Private folder inside root
	ContentRootFolderID string    `json:"content_root_folder_id" dynamodbav:"content_root_folder_id"` // Contents folder inside private
	UpdatedAt           time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// SameFolders reports whether both records point to the same folder ids.
func (r UserDriveRecord) SameFolders(other UserDriveRecord) bool {
	return r.RootFolderID == other.RootFolderID &&
		r.PrivateFolderID == other.PrivateFolderID &&
		r.ContentRootFolderID == other.ContentRootFolderID
}

// UserProfile is the slice of the user profile document this service reads and writes.
type UserProfile struct {
	UserID    string           `json:"user_id" dynamodbav:"user_id"`
	Drive     *UserDriveRecord `json:"drive,omitempty" dynamodbav:"drive,omitempty"`
	UpdatedAt time.Time        `json:"updated_at" dynamodbav:"updated_at"`
}

// FolderClaim reserves the creation of a folder with a given (parent, name) pair.
// A claim without FolderID is pending; ExpiresAt bounds how long it may stay pending.
type FolderClaim struct {
	ClaimKey  string `json:"claim_key" dynamodbav:"claim_key"`
	Owner     string `json:"owner" dynamodbav:"owner_token"`
	FolderID  string `json:"folder_id,omitempty" dynamodbav:"folder_id,omitempty"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // Unix timestamp
}

// Committed reports whether the claim already carries a created folder id.
func (c FolderClaim) Committed() bool {
	return c.FolderID != ""
}

// SystemFolders holds the ids of the global folder skeleton.
type SystemFolders struct {
	RootID    string `json:"rootId"`
	SharedID  string `json:"sharedId"`
	AICacheID string `json:"aiCacheId"`
	UsersID   string `json:"usersId"`
	ThreadsID string `json:"threadsId"`
	PeopleID  string `json:"peopleId"`
}
