package cloud

import (
	"context"

	"github.com/egresslab/gwrotor/internal/endpoint"
)

// Gateway is one entry from the provider's gateway listing.
type Gateway struct {
	Name string
	ID   string
}

// Driver talks to the cloud provider's API-gateway control plane.
// Every method is a blocking call that honors ctx; callers choose
// their concurrency model (bounded worker pool or one goroutine per
// gateway) above this interface.
//
// Provider-native errors never cross this boundary: implementations
// convert them to DiscoveryError, CreateError, or DeleteError.
type Driver interface {
	// ListGateways pages through the provider's listing endpoint and
	// aggregates all pages. On any transport or authorization error it
	// returns a DiscoveryError; callers treat that as "nothing found".
	ListGateways(ctx context.Context, region string) ([]Gateway, error)

	// CreateGateway provisions one gateway routing to targetBaseURL:
	// REST API container, wildcard proxy resource, method and
	// integration configuration on both resources, and a deployment
	// bound to the proxy stage. Any step failing aborts the sequence
	// with a CreateError; no partial-resource cleanup is attempted.
	CreateGateway(ctx context.Context, region, name, targetBaseURL string) (endpoint.Endpoint, error)

	// DeleteGateway deletes one gateway. Provider throttling yields a
	// DeleteError with Retryable set.
	DeleteGateway(ctx context.Context, region, gatewayID string) error
}
