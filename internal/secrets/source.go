// Package secrets sources cloud credentials from pluggable backends:
// process environment variables or a HashiCorp Vault KV v2 secret.
package secrets

import (
	"context"
	"errors"

	"github.com/egresslab/gwrotor/internal/cloud"
)

// Common errors for credential sources.
var (
	// ErrCredentialsNotFound is returned when the source holds no
	// usable credential pair.
	ErrCredentialsNotFound = errors.New("credentials not found")

	// ErrSourceNotConfigured is returned when the source is missing
	// required configuration.
	ErrSourceNotConfigured = errors.New("credential source not configured")
)

// Credential keys looked up in structured backends.
const (
	KeyAccessKeyID     = "access_key_id"
	KeySecretAccessKey = "secret_access_key"
	KeySessionToken    = "session_token"
)

// Source supplies the cloud credential pair. Implementations are safe
// for concurrent use.
type Source interface {
	// Name identifies the source for logging.
	Name() string

	// Credentials returns the credential pair or
	// ErrCredentialsNotFound when the backend has none.
	Credentials(ctx context.Context) (cloud.Credentials, error)
}
