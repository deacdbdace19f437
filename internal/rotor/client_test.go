package rotor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSelector returns a fixed hostname and counts lookups.
type fakeSelector struct {
	hostname string
	target   string
	err      error
	calls    int
	regions  []string
}

func (s *fakeSelector) SelectEndpoint(_ context.Context, region string) (string, error) {
	s.calls++
	s.regions = append(s.regions, region)
	if s.err != nil {
		return "", s.err
	}
	return s.hostname, nil
}

func (s *fakeSelector) TargetBaseURL() string {
	return s.target
}

// captureDoer records the outgoing request instead of sending it.
type captureDoer struct {
	req *http.Request
}

func (d *captureDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Request:    req,
	}, nil
}

func newTestClient(t *testing.T, selector *fakeSelector, doer Doer, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithDoer(doer)}, opts...)
	c, err := New(selector, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresSelector(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.Error(t, err)
}

func TestDoRewritesRequest(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{
		hostname: "abc123.execute-api.us-east-1.amazonaws.com",
		target:   "https://example.com",
	}
	doer := &captureDoer{}
	c := newTestClient(t, selector, doer)

	req, err := http.NewRequest(http.MethodGet, "https://example.com/api/v1/items?x=1", nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotNil(t, doer.req)
	assert.Equal(t,
		"https://abc123.execute-api.us-east-1.amazonaws.com/proxy-stage/api/v1/items?x=1",
		doer.req.URL.String())
	assert.Equal(t, "example.com", doer.req.Header.Get(HeaderHost))
	assert.Empty(t, doer.req.Header.Get("X-Forwarded-For"))
}

func TestDoDoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{hostname: "gw.execute-api.us-east-1.amazonaws.com", target: "https://example.com"}
	c := newTestClient(t, selector, &captureDoer{})

	req, err := http.NewRequest(http.MethodGet, "https://example.com/page", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://example.com/page", req.URL.String())
	assert.Equal(t, "10.0.0.1", req.Header.Get("X-Forwarded-For"))
}

func TestDoEmptyPath(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{hostname: "gw.execute-api.us-east-1.amazonaws.com", target: "https://example.com"}
	doer := &captureDoer{}
	c := newTestClient(t, selector, doer)

	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "/proxy-stage/", doer.req.URL.Path)
}

func TestDoForwardedPinned(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{hostname: "gw.execute-api.us-east-1.amazonaws.com", target: "https://example.com"}
	doer := &captureDoer{}
	c := newTestClient(t, selector, doer)

	req, err := http.NewRequest(http.MethodGet, "https://example.com/a", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "203.0.113.7", doer.req.Header.Get(HeaderForwarded))
	assert.Empty(t, doer.req.Header.Get("X-Forwarded-For"))
}

func TestDoForwardedRandomized(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{hostname: "gw.execute-api.us-east-1.amazonaws.com", target: "https://example.com"}
	doer := &captureDoer{}
	c := newTestClient(t, selector, doer)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		req, err := http.NewRequest(http.MethodGet, "https://example.com/a", nil)
		require.NoError(t, err)

		resp, err := c.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		forwarded := doer.req.Header.Get(HeaderForwarded)
		require.NotNil(t, net.ParseIP(forwarded), "not a valid IP: %q", forwarded)
		require.NotContains(t, forwarded, ":")
		seen[forwarded] = true
	}
	assert.Greater(t, len(seen), 1, "forwarded address should vary per request")
}

func TestDoUserAgent(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{hostname: "gw.execute-api.us-east-1.amazonaws.com", target: "https://example.com"}
	doer := &captureDoer{}
	c := newTestClient(t, selector, doer)

	req, err := http.NewRequest(http.MethodGet, "https://example.com/a", nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, DefaultUserAgent, doer.req.Header.Get(HeaderUserAgent))

	req, err = http.NewRequest(http.MethodGet, "https://example.com/a", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "curl/8.5.0")

	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "curl/8.5.0", doer.req.Header.Get(HeaderUserAgent))
}

func TestDoHostHeaderOverride(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{hostname: "gw.execute-api.us-east-1.amazonaws.com", target: "https://example.com"}
	doer := &captureDoer{}
	c := newTestClient(t, selector, doer, WithHostHeader("override.example.org"))

	req, err := http.NewRequest(http.MethodGet, "https://example.com/a", nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "override.example.org", doer.req.Header.Get(HeaderHost))
}

func TestDoRegionPinned(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{hostname: "gw.execute-api.eu-west-1.amazonaws.com", target: "https://example.com"}
	c := newTestClient(t, selector, &captureDoer{}, WithRegion("eu-west-1"))

	resp, err := c.Get(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, selector.regions, 1)
	assert.Equal(t, "eu-west-1", selector.regions[0])
}

func TestDoSelectorError(t *testing.T) {
	t.Parallel()

	selector := &fakeSelector{target: "https://example.com", err: errors.New("no endpoints")}
	c := newTestClient(t, selector, &captureDoer{})

	req, err := http.NewRequest(http.MethodGet, "https://example.com/a", nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	assert.Error(t, err)
}

func TestRandomIPv4Format(t *testing.T) {
	t.Parallel()

	for i := 0; i < 100; i++ {
		ip := net.ParseIP(randomIPv4())
		require.NotNil(t, ip)
		require.NotNil(t, ip.To4())
	}
}
