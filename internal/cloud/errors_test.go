package cloud

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := &DiscoveryError{Region: "us-east-1", Cause: cause}

	assert.ErrorIs(t, err, ErrDiscovery)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "us-east-1")
	assert.True(t, IsDiscoveryError(err))
	assert.True(t, IsDiscoveryError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsDiscoveryError(cause))
}

func TestCreateError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       *CreateError
		wantParts []string
	}{
		{
			"without gateway id",
			&CreateError{Op: "create_rest_api", Region: "eu-west-1", Cause: errors.New("denied")},
			[]string{"create_rest_api", "eu-west-1", "denied"},
		},
		{
			"with gateway id",
			&CreateError{Op: "create_deployment", Region: "eu-west-1", GatewayID: "abc", Cause: errors.New("boom")},
			[]string{"create_deployment", "abc", "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.err, ErrCreate)
			for _, part := range tt.wantParts {
				assert.Contains(t, tt.err.Error(), part)
			}
		})
	}
}

func TestDeleteError(t *testing.T) {
	t.Parallel()

	throttleCause := errors.New("throttled")
	deniedCause := errors.New("denied")
	retryable := &DeleteError{Region: "us-east-1", GatewayID: "gw1", Retryable: true, Cause: throttleCause}
	terminal := &DeleteError{Region: "us-east-1", GatewayID: "gw1", Cause: deniedCause}

	assert.ErrorIs(t, retryable, ErrDelete)
	assert.ErrorIs(t, retryable, ErrRateLimited)
	assert.ErrorIs(t, terminal, ErrDelete)
	assert.NotErrorIs(t, terminal, ErrRateLimited)

	// The sentinel match must not mask the provider cause.
	assert.ErrorIs(t, retryable, throttleCause)
	assert.ErrorIs(t, terminal, deniedCause)

	assert.True(t, IsRetryableDelete(retryable))
	assert.True(t, IsRetryableDelete(fmt.Errorf("teardown: %w", retryable)))
	assert.False(t, IsRetryableDelete(terminal))
	assert.False(t, IsRetryableDelete(errors.New("other")))
}
