package cloud

import (
	"errors"
	"fmt"
)

// Sentinel errors for driver operations.
var (
	// ErrDiscovery indicates that listing existing gateways failed.
	ErrDiscovery = errors.New("gateway discovery failed")

	// ErrCreate indicates that provisioning a gateway failed.
	ErrCreate = errors.New("gateway creation failed")

	// ErrDelete indicates that deleting a gateway failed.
	ErrDelete = errors.New("gateway deletion failed")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("provider rate limited")
)

// DiscoveryError reports a failed gateway listing. Discovery failures
// are non-fatal: the caller treats them as "nothing found" so a
// discovery outage never blocks fresh gateway creation.
type DiscoveryError struct {
	Region string
	Cause  error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery error region=%s: %v", e.Region, e.Cause)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error class.
func (e *DiscoveryError) Is(target error) bool {
	return target == ErrDiscovery
}

// CreateError reports a failed gateway creation. Op names the
// provider call that failed; GatewayID is set when the REST API
// container was already allocated, so an operator can reap the
// partially configured gateway (no automatic rollback is attempted).
type CreateError struct {
	Op        string
	Region    string
	GatewayID string
	Cause     error
}

// Error implements the error interface.
func (e *CreateError) Error() string {
	if e.GatewayID != "" {
		return fmt.Sprintf("create error [%s] region=%s gateway=%s: %v",
			e.Op, e.Region, e.GatewayID, e.Cause)
	}
	return fmt.Sprintf("create error [%s] region=%s: %v", e.Op, e.Region, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CreateError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error class.
func (e *CreateError) Is(target error) bool {
	return target == ErrCreate
}

// DeleteError reports a failed gateway deletion. Retryable is true
// only for provider throttling; everything else should be restored to
// the pool and retried on a later teardown.
type DeleteError struct {
	Region    string
	GatewayID string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete error region=%s gateway=%s retryable=%t: %v",
		e.Region, e.GatewayID, e.Retryable, e.Cause)
}

// Unwrap returns the underlying error.
func (e *DeleteError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error class.
func (e *DeleteError) Is(target error) bool {
	if target == ErrDelete {
		return true
	}
	return e.Retryable && target == ErrRateLimited
}

// IsRetryableDelete reports whether err is a delete failure worth
// retrying after a backoff.
func IsRetryableDelete(err error) bool {
	var de *DeleteError
	return errors.As(err, &de) && de.Retryable
}

// IsDiscoveryError reports whether err is a discovery failure.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}
