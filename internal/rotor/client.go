package rotor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/egresslab/gwrotor/internal/cloud"
	"github.com/egresslab/gwrotor/internal/observability"
)

// Routing headers injected on every outgoing request. The gateway
// integration re-maps them onto Host, X-Forwarded-For, and User-Agent
// before the request reaches the origin.
const (
	HeaderHost      = "X-Host"
	HeaderForwarded = "X-Forwarded-Header"
	HeaderUserAgent = "X-User-Agent"
)

// DefaultUserAgent is sent when the caller does not supply one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Doer is the outbound HTTP contract. *http.Client satisfies it; the
// client imposes no transport behavior of its own, so connection
// pooling, TLS, redirects, and timeouts stay with the caller's Doer.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Selector hands out live gateway hostnames. *manager.Manager
// satisfies it.
type Selector interface {
	SelectEndpoint(ctx context.Context, region string) (string, error)
	TargetBaseURL() string
}

// Client routes requests through gateway endpoints. Construction
// performs no network I/O; the first request triggers pool
// construction through the selector.
type Client struct {
	selector   Selector
	doer       Doer
	region     string
	hostHeader string
	userAgent  string
	logger     observability.Logger
	debug      bool
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithDoer sets the underlying HTTP client. Default is a plain
// http.Client.
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithRegion pins endpoint selection to one region instead of the
// flat union of all pools.
func WithRegion(region string) Option {
	return func(c *Client) {
		c.region = region
	}
}

// WithHostHeader overrides the X-Host value. Default is the host
// parsed from the selector's target base URL.
func WithHostHeader(host string) Option {
	return func(c *Client) {
		c.hostHeader = host
	}
}

// WithUserAgent overrides the fallback user agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the client logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables per-request rewrite logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// New creates a routing client around a selector.
func New(selector Selector, opts ...Option) (*Client, error) {
	if selector == nil {
		return nil, errors.New("rotor: nil selector")
	}

	c := &Client{
		selector:  selector,
		doer:      &http.Client{},
		userAgent: DefaultUserAgent,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.hostHeader == "" {
		target, err := url.Parse(selector.TargetBaseURL())
		if err != nil {
			return nil, fmt.Errorf("rotor: invalid target base URL: %w", err)
		}
		c.hostHeader = target.Host
	}

	return c, nil
}

// Do rewrites the request to travel via a gateway endpoint and
// delegates to the underlying Doer. The passed request is not
// modified. The response comes back unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	hostname, err := c.selector.SelectEndpoint(req.Context(), c.region)
	if err != nil {
		return nil, fmt.Errorf("rotor: no endpoint available: %w", err)
	}

	out := req.Clone(req.Context())
	out.URL.Scheme = "https"
	out.URL.Host = hostname
	out.URL.Path = "/" + cloud.StageName + "/" + strings.TrimPrefix(req.URL.Path, "/")
	out.URL.RawPath = ""
	out.Host = ""

	out.Header.Set(HeaderHost, c.hostHeader)

	forwarded := req.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		forwarded = randomIPv4()
	}
	out.Header.Set(HeaderForwarded, forwarded)
	// Folded into X-Forwarded-Header; must not leak under its raw name.
	out.Header.Del("X-Forwarded-For")

	ua := req.Header.Get("User-Agent")
	if ua == "" {
		ua = c.userAgent
	}
	out.Header.Set(HeaderUserAgent, ua)

	if c.debug {
		c.logger.Debug("routing request via gateway",
			observability.String("method", req.Method),
			observability.String("original_url", req.URL.String()),
			observability.String("rewritten_url", out.URL.String()),
			observability.String("endpoint", hostname),
		)
	}

	return c.doer.Do(out)
}

// Get issues a GET for rawURL through a gateway endpoint.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// randomIPv4 formats a uniform random 32-bit value as a dotted quad.
func randomIPv4() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], rand.Uint32())
	return net.IP(b[:]).String()
}
