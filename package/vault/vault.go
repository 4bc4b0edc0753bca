package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"
)

type VaultConfig struct {
	Address   string
	Token     string
	TLSConfig *TLSConfig
}

type TLSConfig struct {
	CACert     string
	ClientCert string
	ClientKey  string
	Insecure   bool
}

type HealthStatus struct {
	Connected     bool          `json:"connected"`
	Address       string        `json:"address"`
	Authenticated bool          `json:"authenticated"`
	Latency       time.Duration `json:"latency"`
	Error         string        `json:"error,omitempty"`
}

// VaultService supplies externally managed secrets, primarily the token
// signing keys loaded at startup.
type VaultService interface {
	HealthCheck(ctx context.Context) HealthStatus
	GetSecret(ctx context.Context, path string) (map[string]interface{}, error)
	GetSecretString(ctx context.Context, path, field string) (string, error)
	Close() error
}

type VaultClient struct {
	client *api.Client
	config VaultConfig
}

func NewVaultClient(config VaultConfig) (*VaultClient, error) {
	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = config.Address

	if config.TLSConfig != nil {
		tlsConfig := &api.TLSConfig{
			CACert:     config.TLSConfig.CACert,
			ClientCert: config.TLSConfig.ClientCert,
			ClientKey:  config.TLSConfig.ClientKey,
			Insecure:   config.TLSConfig.Insecure,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	client.SetToken(config.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.Auth().Token().LookupSelfWithContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	return &VaultClient{
		client: client,
		config: config,
	}, nil
}

func (v *VaultClient) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	status := HealthStatus{
		Address: v.config.Address,
	}

	if _, err := v.client.Sys().HealthWithContext(ctx); err != nil {
		status.Error = err.Error()
		return status
	}

	status.Connected = true
	status.Latency = time.Since(start)

	if _, err := v.client.Auth().Token().LookupSelfWithContext(ctx); err != nil {
		status.Error = fmt.Sprintf("authentication failed: %v", err)
	} else {
		status.Authenticated = true
	}

	return status
}

func (v *VaultClient) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at path %s: %w", path, err)
	}

	if secret == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	// KV v2 nests the payload under "data"
	if data, ok := secret.Data["data"]; ok {
		if dataMap, ok := data.(map[string]interface{}); ok {
			return dataMap, nil
		}
	}

	return secret.Data, nil
}

// GetSecretString reads one field of a secret, for callers that want a
// single value such as a signing key.
func (v *VaultClient) GetSecretString(ctx context.Context, path, field string) (string, error) {
	data, err := v.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}

	value, ok := data[field]
	if !ok {
		return "", fmt.Errorf("secret at path %s has no field %s", path, field)
	}

	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("secret field %s at path %s is not a string", field, path)
	}

	return s, nil
}

func (v *VaultClient) Close() error {
	if v.client != nil {
		v.client.ClearToken()
	}
	return nil
}
