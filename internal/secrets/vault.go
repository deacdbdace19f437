package secrets

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/egresslab/gwrotor/internal/cloud"
)

// DefaultVaultMount is the default KV v2 mount point.
const DefaultVaultMount = "secret"

// VaultConfig configures the Vault credential source.
type VaultConfig struct {
	// Address is the Vault server URL.
	Address string

	// Token authenticates against Vault.
	Token string

	// Mount is the KV v2 mount point. Default is "secret".
	Mount string

	// Path is the secret path under the mount. The secret's data must
	// carry access_key_id, secret_access_key, and optionally
	// session_token.
	Path string
}

// kvReader is the slice of the Vault KV v2 API the source uses.
type kvReader interface {
	Get(ctx context.Context, secretPath string) (*vaultapi.KVSecret, error)
}

// VaultSource reads credentials from a Vault KV v2 secret.
type VaultSource struct {
	kv   kvReader
	path string
}

// NewVaultSource creates a Vault credential source and its underlying
// client. Construction does not contact Vault.
func NewVaultSource(cfg VaultConfig) (*VaultSource, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrSourceNotConfigured)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: vault secret path is required", ErrSourceNotConfigured)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = DefaultVaultMount
	}

	clientCfg := vaultapi.DefaultConfig()
	clientCfg.Address = cfg.Address

	client, err := vaultapi.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &VaultSource{
		kv:   client.KVv2(mount),
		path: cfg.Path,
	}, nil
}

// Name implements Source.
func (s *VaultSource) Name() string {
	return "vault"
}

// Credentials implements Source.
func (s *VaultSource) Credentials(ctx context.Context) (cloud.Credentials, error) {
	secret, err := s.kv.Get(ctx, s.path)
	if err != nil {
		return cloud.Credentials{}, fmt.Errorf("failed to read vault secret %s: %w", s.path, err)
	}
	if secret == nil || secret.Data == nil {
		return cloud.Credentials{}, fmt.Errorf("%w: vault secret %s is empty", ErrCredentialsNotFound, s.path)
	}

	accessKey, _ := secret.Data[KeyAccessKeyID].(string)
	secretKey, _ := secret.Data[KeySecretAccessKey].(string)
	sessionToken, _ := secret.Data[KeySessionToken].(string)

	if accessKey == "" || secretKey == "" {
		return cloud.Credentials{}, fmt.Errorf("%w: vault secret %s is missing %s or %s",
			ErrCredentialsNotFound, s.path, KeyAccessKeyID, KeySecretAccessKey)
	}

	return cloud.Credentials{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    sessionToken,
	}, nil
}
