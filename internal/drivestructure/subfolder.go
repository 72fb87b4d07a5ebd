package drivestructure

import (
	"context"

	"github.com/smartlens/drive-backend/internal/adapter"
)

// CreateMessageFolder creates a fresh "{userID}_{timestamp}" folder under parentID
// for one message's attachments. It never searches first and grants nothing;
// the folder inherits the parent's sharing.
func (s *Service) CreateMessageFolder(ctx context.Context, parentID, userID string) (*adapter.Folder, error) {
	if parentID == "" || userID == "" {
		return nil, &ProvisioningError{Op: OpCreate, Name: userID, Parent: parentID, Err: ErrMissingID}
	}
	name := MessageFolderName(userID, s.now())
	f, err := s.drive.CreateFolder(ctx, name, parentID)
	if err != nil {
		s.log.Error("message folder creation failed", "name", name, "parent", parentID, "error", err)
		return nil, &ProvisioningError{Op: OpCreate, Name: name, Parent: parentID, Err: err}
	}
	s.log.Info("message folder created", "name", name, "parent", parentID, "id", f.ID)
	return f, nil
}
