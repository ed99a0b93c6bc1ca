package di

import (
	"context"
	"testing"

	"digital-clone/frontend/pkg/config"
	"digital-clone/frontend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("VAULT_ADDR", "")
	cfg := config.Load()
	cfg.Backend.URL = "http://127.0.0.1:1"
	cfg.Session.Store = "memory"
	cfg.Observability.TracingEnable = false
	return cfg
}

func TestNewWiresWebFront(t *testing.T) {
	cfg := testConfig(t)
	cfg.GRPC.Enabled = true

	c, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Close(context.Background())) }()

	assert.NotNil(t, c.Handler)
	assert.NotNil(t, c.Sessions)
	assert.NotNil(t, c.Registry)
	assert.NotNil(t, c.GRPC)
	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)
	assert.NotNil(t, c.Templates.Lookup("chat.html"))
}

func TestNewRejectsUnknownSessionStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Store = "etcd"

	_, err := New(context.Background(), cfg, logger.Nop())
	assert.ErrorContains(t, err, `unknown session store "etcd"`)
}

func TestProductionRequiresSessionSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Env = "production"
	cfg.Security.SessionSecretKey = "frontend-test-missing-secret"

	_, err := New(context.Background(), cfg, logger.Nop())
	assert.ErrorContains(t, err, "frontend-test-missing-secret")
}
