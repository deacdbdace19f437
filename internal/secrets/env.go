package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/egresslab/gwrotor/internal/cloud"
)

// Environment variables read by EnvSource, matching the standard AWS
// SDK conventions.
const (
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    = "AWS_SESSION_TOKEN"
)

// EnvSource reads credentials from the process environment.
type EnvSource struct{}

// NewEnvSource creates an environment credential source.
func NewEnvSource() *EnvSource {
	return &EnvSource{}
}

// Name implements Source.
func (s *EnvSource) Name() string {
	return "env"
}

// Credentials implements Source. The session token is optional.
func (s *EnvSource) Credentials(context.Context) (cloud.Credentials, error) {
	accessKey := os.Getenv(EnvAccessKeyID)
	secretKey := os.Getenv(EnvSecretAccessKey)
	if accessKey == "" || secretKey == "" {
		return cloud.Credentials{}, fmt.Errorf("%w: %s and %s must be set",
			ErrCredentialsNotFound, EnvAccessKeyID, EnvSecretAccessKey)
	}

	return cloud.Credentials{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    os.Getenv(EnvSessionToken),
	}, nil
}
