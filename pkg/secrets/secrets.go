package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// EnvManager reads secrets from environment variables only
type EnvManager struct{}

// GetSecret maps key to an upper-case variable name, so "session-secret"
// reads SESSION_SECRET
func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(envKey(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}
