// Package cloud talks to the cloud provider's API-gateway control
// plane: listing existing gateways, provisioning a gateway with its
// proxy resource, integration, and deployment, and deleting gateways.
//
// The Driver interface hides the provider; AWSDriver is the API
// Gateway implementation. All provider errors are converted to the
// package's error taxonomy at this boundary:
//
//   - DiscoveryError: listing failed; callers degrade to "nothing
//     found" so a discovery outage never blocks creation
//   - CreateError: one step of the provisioning sequence failed; the
//     sequence aborts without rollback
//   - DeleteError: deletion failed; Retryable marks provider
//     throttling
//
// Control-plane calls share a token-bucket rate limiter, and
// discovery runs behind a circuit breaker so a provider outage
// short-circuits quickly instead of paging through timeouts.
package cloud
