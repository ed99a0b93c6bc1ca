package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digital-clone/frontend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvManager(t *testing.T) {
	t.Setenv("SESSION_SECRET", "from-env")
	ctx := context.Background()

	value, err := EnvManager{}.GetSecret(ctx, "session-secret")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)

	assert.Equal(t, "fallback", EnvManager{}.GetSecretWithDefault(ctx, "missing.key", "fallback"))
}

func TestNewManagerWithoutVault(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	m, err := NewManager(logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, EnvManager{}, m)
}

func TestVaultManagerReadsKV(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1/secret/data/clone-frontend", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     map[string]any{"session-secret": "from-vault"},
				"metadata": map[string]any{"version": 1},
			},
		})
	}))
	defer srv.Close()

	m, err := NewVaultManager(VaultConfig{
		Address:     srv.URL,
		Token:       "root",
		Mount:       "secret",
		SecretsPath: "clone-frontend",
		Timeout:     time.Second,
		CacheTTL:    time.Minute,
	}, logger.Nop())
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	value, err := m.GetSecret(ctx, "session-secret")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", value)

	_, err = m.GetSecret(ctx, "session-secret")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestVaultManagerRequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Token: "x"}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Address: "http://vault"}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}
