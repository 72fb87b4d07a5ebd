// Package index caches resolved folder ids by (parent, name) so repeated
// resolutions skip the search call.
package index

import (
	"context"
	"time"
)

// DefaultTTL is how long a resolved folder id is trusted without re-searching.
const DefaultTTL = 10 * time.Minute

// Index defines the folder id cache.
type Index interface {
	Get(ctx context.Context, parentID, name string) (string, bool, error)
	Set(ctx context.Context, parentID, name, folderID string) error
	Delete(ctx context.Context, parentID, name string) error
}

func entryKey(parentID, name string) string {
	return parentID + "/" + name
}
