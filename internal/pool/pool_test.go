package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egresslab/gwrotor/internal/endpoint"
)

const baseName = "gwrotor Proxy Gateway for https://example.com"

func TestNumToCreate(t *testing.T) {
	t.Parallel()

	p := New(baseName, "us-east-1", 3)
	assert.Equal(t, 3, p.NumToCreate())

	p.Add(endpoint.Endpoint{Name: baseName, GatewayID: "a", Region: "us-east-1"})
	assert.Equal(t, 2, p.NumToCreate())

	// More endpoints than desired must not go negative.
	for _, id := range []string{"b", "c", "d"} {
		p.Add(endpoint.Endpoint{Name: baseName, GatewayID: id, Region: "us-east-1"})
	}
	assert.Equal(t, 0, p.NumToCreate())
	assert.Equal(t, 4, p.Len())
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	p := New(baseName, "us-east-1", 2)

	discovered := []Descriptor{
		{Name: baseName, ID: "gw1"},
		{Name: baseName + " (f1c7)", ID: "gw2"},
		{Name: "unrelated API", ID: "gw3"},
	}

	adopted := p.Reconcile(discovered)
	assert.Equal(t, 2, adopted)
	assert.Equal(t, 2, p.Len())

	endpoints := p.Endpoints()
	require.Len(t, endpoints, 2)
	assert.Equal(t, "gw1", endpoints[0].GatewayID)
	assert.Equal(t, "us-east-1", endpoints[0].Region)
}

func TestReconcileIdempotent(t *testing.T) {
	t.Parallel()

	p := New(baseName, "us-east-1", 2)
	discovered := []Descriptor{
		{Name: baseName, ID: "gw1"},
		{Name: baseName, ID: "gw2"},
	}

	assert.Equal(t, 2, p.Reconcile(discovered))
	assert.Equal(t, 0, p.Reconcile(discovered))
	assert.Equal(t, 2, p.Len())
}

func TestReconcileNeverRemoves(t *testing.T) {
	t.Parallel()

	p := New(baseName, "us-east-1", 1)
	p.Add(endpoint.Endpoint{Name: baseName, GatewayID: "existing", Region: "us-east-1"})

	p.Reconcile(nil)
	assert.Equal(t, 1, p.Len())
}

func TestSelectRandom(t *testing.T) {
	t.Parallel()

	p := New(baseName, "us-east-1", 2)
	p.Add(endpoint.Endpoint{Name: baseName, GatewayID: "gw1", Region: "us-east-1"})
	p.Add(endpoint.Endpoint{Name: baseName, GatewayID: "gw2", Region: "us-east-1"})

	valid := map[string]bool{
		"gw1.execute-api.us-east-1.amazonaws.com": true,
		"gw2.execute-api.us-east-1.amazonaws.com": true,
	}

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		hostname, err := p.SelectRandom()
		require.NoError(t, err)
		assert.True(t, valid[hostname])
		seen[hostname] = true
	}
	// Both endpoints should be selected over 200 draws.
	assert.Len(t, seen, 2)
}

func TestSelectRandomEmpty(t *testing.T) {
	t.Parallel()

	p := New(baseName, "us-east-1", 1)

	_, err := p.SelectRandom()
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestPopAndRestore(t *testing.T) {
	t.Parallel()

	p := New(baseName, "us-east-1", 2)
	p.Add(endpoint.Endpoint{Name: baseName, GatewayID: "gw1", Region: "us-east-1"})

	e, ok := p.Pop()
	require.True(t, ok)
	assert.Equal(t, "gw1", e.GatewayID)
	assert.Equal(t, 0, p.Len())

	_, ok = p.Pop()
	assert.False(t, ok)

	p.Restore(e)
	assert.Equal(t, 1, p.Len())
}

func TestConcurrentAdd(t *testing.T) {
	t.Parallel()

	p := New(baseName, "us-east-1", 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.Add(endpoint.Endpoint{Name: baseName, GatewayID: string(rune('a' + n%26)), Region: "us-east-1"})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, p.Len())
}
