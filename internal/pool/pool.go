// Package pool tracks the desired versus actual set of proxy gateway
// endpoints for one provider region.
package pool

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/egresslab/gwrotor/internal/endpoint"
)

// ErrEmptyPool is returned when a selection is attempted on a pool
// with no tracked endpoints.
var ErrEmptyPool = errors.New("no endpoints in pool")

// Descriptor is a raw gateway listing entry as returned by the
// provider's discovery endpoint.
type Descriptor struct {
	Name string
	ID   string
}

// RegionPool tracks the endpoints provisioned in one region. The pool
// may temporarily hold more endpoints than desired when external
// inventory already contains more matching gateways; the excess is
// reused, never deleted outside a forced teardown.
//
// All mutations go through the mutex: creations and deletions run
// concurrently, one goroutine per gateway.
type RegionPool struct {
	name    string
	region  string
	desired int

	mu        sync.RWMutex
	endpoints []endpoint.Endpoint
}

// New creates a pool for one region. name is the base gateway name
// used as the discovery match prefix.
func New(name, region string, desired int) *RegionPool {
	return &RegionPool{
		name:    name,
		region:  region,
		desired: desired,
	}
}

// Name returns the base gateway name for this pool.
func (p *RegionPool) Name() string {
	return p.name
}

// Region returns the provider region this pool covers.
func (p *RegionPool) Region() string {
	return p.region
}

// DesiredCount returns the configured number of gateways for this pool.
func (p *RegionPool) DesiredCount() int {
	return p.desired
}

// Len returns the number of tracked endpoints.
func (p *RegionPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.endpoints)
}

// NumToCreate returns how many gateways are still needed to reach the
// desired count. Never negative; computed, never stored.
func (p *RegionPool) NumToCreate() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := p.desired - len(p.endpoints)
	if n < 0 {
		return 0
	}
	return n
}

// Endpoints returns a copy of the tracked endpoints.
func (p *RegionPool) Endpoints() []endpoint.Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]endpoint.Endpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// Hostnames returns the hostnames of all tracked endpoints.
func (p *RegionPool) Hostnames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.endpoints))
	for i, e := range p.endpoints {
		out[i] = e.Hostname()
	}
	return out
}

// Add appends a freshly created endpoint to the pool.
func (p *RegionPool) Add(e endpoint.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints = append(p.endpoints, e)
}

// Reconcile merges discovered gateways into the tracked set. A
// descriptor is adopted when its name starts with the pool's base name
// and its id is not already tracked. Idempotent: reconciling the same
// listing twice appends nothing the second time. Never removes
// entries. Returns the number of endpoints adopted.
func (p *RegionPool) Reconcile(discovered []Descriptor) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracked := make(map[string]bool, len(p.endpoints))
	for _, e := range p.endpoints {
		tracked[e.GatewayID] = true
	}

	adopted := 0
	for _, d := range discovered {
		if !strings.HasPrefix(d.Name, p.name) || tracked[d.ID] {
			continue
		}
		tracked[d.ID] = true
		p.endpoints = append(p.endpoints, endpoint.Endpoint{
			Name:      d.Name,
			GatewayID: d.ID,
			Region:    p.region,
		})
		adopted++
	}
	return adopted
}

// SelectRandom returns the hostname of a uniformly chosen endpoint.
func (p *RegionPool) SelectRandom() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.endpoints) == 0 {
		return "", ErrEmptyPool
	}
	return p.endpoints[rand.IntN(len(p.endpoints))].Hostname(), nil
}

// Pop removes and returns the last tracked endpoint. Used by teardown
// to drain the pool one endpoint at a time.
func (p *RegionPool) Pop() (endpoint.Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.endpoints) == 0 {
		return endpoint.Endpoint{}, false
	}
	e := p.endpoints[len(p.endpoints)-1]
	p.endpoints = p.endpoints[:len(p.endpoints)-1]
	return e, true
}

// Restore puts an endpoint back after a failed delete so a future
// teardown attempt can retry it.
func (p *RegionPool) Restore(e endpoint.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints = append(p.endpoints, e)
}
