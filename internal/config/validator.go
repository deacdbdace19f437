package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s: %s", e.Field, e.Message)
}

// Validate checks a configuration for structural problems. Region
// names are not validated against a fixed catalogue: group names are
// expanded later and unknown literals pass through as provider
// regions.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Field: "config", Message: "configuration is nil"}
	}

	if cfg.TargetBaseURL == "" {
		return &ValidationError{Field: "targetBaseURL", Message: "is required"}
	}
	u, err := url.Parse(cfg.TargetBaseURL)
	if err != nil {
		return &ValidationError{Field: "targetBaseURL", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{
			Field:   "targetBaseURL",
			Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme),
		}
	}
	if u.Host == "" {
		return &ValidationError{Field: "targetBaseURL", Message: "host is missing"}
	}

	if cfg.GatewaysPerRegion < 0 {
		return &ValidationError{Field: "gatewaysPerRegion", Message: "must not be negative"}
	}
	if cfg.DeleteMaxRetries < 0 {
		return &ValidationError{Field: "deleteMaxRetries", Message: "must not be negative"}
	}
	if cfg.PaginationLimit < 0 {
		return &ValidationError{Field: "paginationLimit", Message: "must not be negative"}
	}
	if cfg.DeleteBackoff < 0 {
		return &ValidationError{Field: "deleteBackoff", Message: "must not be negative"}
	}

	for _, region := range cfg.Regions {
		if strings.TrimSpace(region) == "" {
			return &ValidationError{Field: "regions", Message: "contains an empty entry"}
		}
	}

	switch provider := cfg.GetSecretsProvider(); provider {
	case "env":
	case "vault":
		if cfg.Secrets.Vault.Address == "" {
			return &ValidationError{Field: "secrets.vault.address", Message: "is required for the vault provider"}
		}
		if cfg.Secrets.Vault.Path == "" {
			return &ValidationError{Field: "secrets.vault.path", Message: "is required for the vault provider"}
		}
	default:
		return &ValidationError{
			Field:   "secrets.provider",
			Message: fmt.Sprintf("unknown provider %q, expected env or vault", provider),
		}
	}

	if cfg.Admin.Enabled && cfg.GetAdminListen() == "" {
		return &ValidationError{Field: "admin.listen", Message: "is required when the admin server is enabled"}
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.OTLPEndpoint == "" {
			return &ValidationError{Field: "tracing.otlpEndpoint", Message: "is required when tracing is enabled"}
		}
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			return &ValidationError{Field: "tracing.samplingRate", Message: "must be between 0 and 1"}
		}
	}

	return nil
}
