package adapter

import (
	"errors"
)

var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidIdentity is returned when a grant targets an identity the storage rejects.
	ErrInvalidIdentity = errors.New("invalid identity")
)
