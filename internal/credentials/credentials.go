// Package credentials builds the process-wide Drive service identity.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/smartlens/drive-backend/internal/crypto"
	"github.com/smartlens/drive-backend/internal/secret"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// ServiceIdentity is the credential every folder is created and shared under.
type ServiceIdentity struct {
	Email  string
	Client *http.Client
}

// Load resolves the service-account key named param, decrypts it with sealed
// when non-nil, and returns an authenticated client scoped to Drive.
// It is meant to run once at startup.
func Load(ctx context.Context, resolver secret.Resolver, param string, sealed crypto.Encryptor) (*ServiceIdentity, error) {
	raw, err := resolver.GetSecret(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("resolve service key: %w", err)
	}
	if sealed != nil {
		raw, err = sealed.Decrypt(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("decrypt service key: %w", err)
		}
	}
	return FromJSON(ctx, []byte(raw))
}

// FromJSON builds a ServiceIdentity from a service-account key file.
func FromJSON(ctx context.Context, key []byte) (*ServiceIdentity, error) {
	if len(key) == 0 {
		return nil, errors.New("service key is empty")
	}
	cfg, err := google.JWTConfigFromJSON(key, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse service key: %w", err)
	}
	if cfg.Email == "" {
		return nil, errors.New("service key has no client_email")
	}
	return &ServiceIdentity{
		Email:  cfg.Email,
		Client: cfg.Client(ctx),
	}, nil
}
