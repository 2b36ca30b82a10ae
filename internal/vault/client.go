package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"snappy-license-server/config"
)

// SMTPCredentials is the mail secret material stored in Vault
type SMTPCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Client wraps the HashiCorp Vault client for application secret
// bootstrap. When Vault is disabled the getters report not-found and
// the caller keeps its environment-sourced values.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cache  map[string]map[string]interface{}
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[string]map[string]interface{}),
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]map[string]interface{}),
	}, nil
}

// Enabled reports whether the client talks to a real Vault.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// readSecret reads a KV v2 secret at the given logical name.
func (c *Client) readSecret(ctx context.Context, name string) (map[string]interface{}, error) {
	c.mu.RLock()
	if cached, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("vault is disabled")
	}

	path := fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, name)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s from vault: %w", name, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %s not found", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format for %s", name)
	}

	c.mu.Lock()
	c.cache[name] = data
	c.mu.Unlock()

	return data, nil
}

// GetJWTSecret retrieves the JWT signing secret.
func (c *Client) GetJWTSecret(ctx context.Context) (string, error) {
	data, err := c.readSecret(ctx, "jwt")
	if err != nil {
		return "", err
	}
	secret := getString(data, "secret")
	if secret == "" {
		return "", fmt.Errorf("jwt secret is empty")
	}
	return secret, nil
}

// GetSMTPCredentials retrieves the SMTP secret material.
func (c *Client) GetSMTPCredentials(ctx context.Context) (*SMTPCredentials, error) {
	data, err := c.readSecret(ctx, "smtp")
	if err != nil {
		return nil, err
	}
	return &SMTPCredentials{
		Username: getString(data, "username"),
		Password: getString(data, "password"),
		From:     getString(data, "from"),
	}, nil
}

// HealthCheck verifies Vault connectivity.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
