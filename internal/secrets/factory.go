package secrets

import (
	"fmt"

	"github.com/egresslab/gwrotor/internal/config"
)

// NewSource builds a credential source from configuration.
func NewSource(cfg config.SecretsConfig) (Source, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "env"
	}

	switch provider {
	case "env":
		return NewEnvSource(), nil
	case "vault":
		return NewVaultSource(VaultConfig{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
			Mount:   cfg.Vault.Mount,
			Path:    cfg.Vault.Path,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrSourceNotConfigured, provider)
	}
}
