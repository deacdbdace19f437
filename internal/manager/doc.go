// Package manager orchestrates the proxy gateway fleet across regions.
//
// A Manager owns one pool per configured region and drives the full
// endpoint lifecycle against a cloud.Driver: discovery and reconcile on
// build, concurrent creation of missing gateways, random endpoint
// selection for routing, and retried deletion on teardown. The
// concurrency model is pluggable through the Executor interface, either
// a bounded worker pool or one goroutine per gateway.
package manager
