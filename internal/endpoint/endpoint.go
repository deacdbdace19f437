// Package endpoint defines the record type for a provisioned proxy
// gateway endpoint and the named region groups used to place them.
package endpoint

import "fmt"

// Endpoint is one provisioned API Gateway REST API acting as an
// egress relay. It is immutable once created: the cloud driver is the
// only producer, and an endpoint disappears only when its delete call
// succeeds.
type Endpoint struct {
	Name      string
	GatewayID string
	Region    string
}

// Hostname returns the public execute-api hostname of the endpoint.
func (e Endpoint) Hostname() string {
	return fmt.Sprintf("%s.execute-api.%s.amazonaws.com", e.GatewayID, e.Region)
}
