package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"digital-clone/frontend/pkg/cache"
	"digital-clone/frontend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig holds configuration for Vault client
type VaultConfig struct {
	Address     string
	Token       string
	Namespace   string
	Mount       string
	SecretsPath string
	Timeout     time.Duration
	MaxRetries  int
	CacheTTL    time.Duration
}

// VaultConfigFromEnv reads the standard VAULT_* variables
func VaultConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Address:     os.Getenv("VAULT_ADDR"),
		Token:       os.Getenv("VAULT_TOKEN"),
		Namespace:   os.Getenv("VAULT_NAMESPACE"),
		Mount:       os.Getenv("VAULT_MOUNT"),
		SecretsPath: os.Getenv("VAULT_SECRETS_PATH"),
		Timeout:     10 * time.Second,
		MaxRetries:  3,
		CacheTTL:    5 * time.Minute,
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.SecretsPath == "" {
		cfg.SecretsPath = "clone-frontend"
	}
	return cfg
}

// VaultManager manages secrets with HashiCorp Vault and falls back to
// the environment for keys Vault does not hold
type VaultManager struct {
	client *vault.Client
	config VaultConfig
	cache  *cache.Cache[string]
	env    EnvManager
	log    *logger.Logger
}

// NewVaultManager creates a new Vault manager instance
func NewVaultManager(config VaultConfig, log *logger.Logger) (*VaultManager, error) {
	if config.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if config.Token == "" {
		return nil, ErrNoVaultToken
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	vaultConfig.Timeout = config.Timeout
	vaultConfig.MaxRetries = config.MaxRetries

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	return &VaultManager{
		client: client,
		config: config,
		cache:  cache.New[string](cache.Options{DefaultExpiration: config.CacheTTL, CleanupInterval: config.CacheTTL}),
		log:    log,
	}, nil
}

// NewManager returns a Vault-backed manager when VAULT_ADDR is set and
// an environment-only manager otherwise
func NewManager(log *logger.Logger) (Manager, error) {
	cfg := VaultConfigFromEnv()
	if cfg.Address == "" {
		log.Info("Vault not configured, reading secrets from environment")
		return EnvManager{}, nil
	}
	return NewVaultManager(cfg, log)
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value, found := m.cache.Get(key); found {
		return value, nil
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			return "", err
		}
		m.log.Warn("Secret not found in Vault, falling back to environment", "key", key)
		if value, err = m.env.GetSecret(ctx, key); err != nil {
			return "", err
		}
	}

	m.cache.Set(key, value)
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		m.log.Warn("Failed to get secret, using default value",
			"key", key,
			"error", err.Error(),
		)
		return defaultValue
	}
	return value
}

// Close stops the cache sweeper
func (m *VaultManager) Close() {
	m.cache.Close()
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.config.Mount).Get(ctx, m.config.SecretsPath)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		m.log.Error("Failed to read secret from Vault",
			"path", m.config.SecretsPath,
			"error", err.Error(),
		)
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok {
		return "", ErrSecretNotFound
	}

	return value, nil
}
