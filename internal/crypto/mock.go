package crypto

import (
	"context"
	"strings"
)

const mockPrefix = "mock:"

// MockEncryptor stands in for KMS in DEV_MODE when SERVICE_KEY_KMS_ENCRYPTED is set.
// Ciphertext is the plaintext with a "mock:" prefix.
type MockEncryptor struct{}

func NewMockEncryptor() *MockEncryptor {
	return &MockEncryptor{}
}

func (m *MockEncryptor) Encrypt(ctx context.Context, plaintext string) (string, error) {
	return mockPrefix + plaintext, nil
}

// Decrypt strips the prefix. Unprefixed input is returned as is so plain keys work locally.
func (m *MockEncryptor) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, mockPrefix), nil
}
