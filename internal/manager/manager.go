package manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/egresslab/gwrotor/internal/cloud"
	"github.com/egresslab/gwrotor/internal/endpoint"
	"github.com/egresslab/gwrotor/internal/observability"
	"github.com/egresslab/gwrotor/internal/pool"
	"github.com/egresslab/gwrotor/internal/retry"
)

// BaseNamePrefix is the prefix of every gateway name this manager
// creates; discovery matches by this prefix plus the target URL.
const BaseNamePrefix = "gwrotor Proxy Gateway for "

// Default manager configuration constants.
const (
	// DefaultGatewaysPerRegion is the default desired pool size.
	DefaultGatewaysPerRegion = 1

	// DefaultDeleteMaxRetries caps rate-limited delete retries. The
	// cap is deliberate: retrying forever under sustained throttling
	// would never return.
	DefaultDeleteMaxRetries = 5

	// DefaultDeleteBackoff is the wait before a rate-limited delete
	// is retried.
	DefaultDeleteBackoff = 3 * time.Second
)

// ErrNotBuilt indicates the manager has no active pools yet. It never
// reaches callers of SelectEndpoint, which recovers by building.
var ErrNotBuilt = errors.New("proxy pools not built")

// State is the manager lifecycle state.
type State int

// Manager lifecycle states.
const (
	StateUninitialized State = iota
	StateBuilding
	StateActive
	StateTearingDown
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilding:
		return "building"
	case StateActive:
		return "active"
	case StateTearingDown:
		return "tearing-down"
	default:
		return "unknown"
	}
}

// Config contains manager configuration parameters.
type Config struct {
	// TargetBaseURL is the origin all gateways route to. Required;
	// must be http:// or https://. A trailing slash is stripped.
	TargetBaseURL string

	// Regions lists provider regions or named region groups.
	// Empty means the default group.
	Regions []string

	// GatewaysPerRegion is the desired pool size per region.
	// Default is 1.
	GatewaysPerRegion int

	// ReuseGateways keeps gateways alive at teardown so a future
	// process can rediscover them.
	ReuseGateways bool

	// UniqueNames appends a random suffix to each created gateway
	// name so repeated builds never collide.
	UniqueNames bool

	// DeleteMaxRetries caps rate-limited delete retries. Default is 5.
	DeleteMaxRetries int

	// DeleteBackoff is the wait between rate-limited delete attempts.
	// Default is 3s.
	DeleteBackoff time.Duration
}

// GetGatewaysPerRegion returns the effective desired pool size.
func (c *Config) GetGatewaysPerRegion() int {
	if c == nil || c.GatewaysPerRegion <= 0 {
		return DefaultGatewaysPerRegion
	}
	return c.GatewaysPerRegion
}

// GetDeleteMaxRetries returns the effective delete retry cap.
func (c *Config) GetDeleteMaxRetries() int {
	if c == nil || c.DeleteMaxRetries <= 0 {
		return DefaultDeleteMaxRetries
	}
	return c.DeleteMaxRetries
}

// GetDeleteBackoff returns the effective delete retry backoff.
func (c *Config) GetDeleteBackoff() time.Duration {
	if c == nil || c.DeleteBackoff <= 0 {
		return DefaultDeleteBackoff
	}
	return c.DeleteBackoff
}

// Manager orchestrates region pools across one or more regions. It
// owns exactly one pool per configured region; pools are never shared
// across manager instances.
type Manager struct {
	cfg     *Config
	target  string
	regions []string
	driver  cloud.Driver
	exec    Executor
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	// opMu serializes Build and Teardown; mu guards state and the
	// pools map. Individual pools carry their own locks because
	// per-gateway operations mutate them concurrently.
	opMu  sync.Mutex
	mu    sync.RWMutex
	state State
	pools map[string]*pool.RegionPool
}

// Option is a functional option for configuring the manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger observability.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the manager metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithExecutor sets the execution model. Default is a worker pool of
// DefaultWorkers.
func WithExecutor(exec Executor) Option {
	return func(m *Manager) {
		m.exec = exec
	}
}

// WithTracer sets the tracer for build/teardown spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// New creates a manager. Construction performs no network I/O.
func New(cfg *Config, driver cloud.Driver, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("manager: nil config")
	}
	if driver == nil {
		return nil, errors.New("manager: nil driver")
	}
	if !strings.HasPrefix(cfg.TargetBaseURL, "http://") &&
		!strings.HasPrefix(cfg.TargetBaseURL, "https://") {
		return nil, fmt.Errorf("manager: invalid target base URL %q", cfg.TargetBaseURL)
	}
	if _, err := url.Parse(cfg.TargetBaseURL); err != nil {
		return nil, fmt.Errorf("manager: invalid target base URL: %w", err)
	}

	m := &Manager{
		cfg:     cfg,
		target:  strings.TrimSuffix(cfg.TargetBaseURL, "/"),
		regions: endpoint.ExpandRegions(cfg.Regions),
		driver:  driver,
		exec:    NewWorkerPool(DefaultWorkers),
		logger:  observability.NopLogger(),
		pools:   make(map[string]*pool.RegionPool),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// BaseName returns the gateway name prefix shared by every gateway
// this manager creates or adopts.
func (m *Manager) BaseName() string {
	return BaseNamePrefix + m.target
}

// TargetBaseURL returns the normalized target base URL.
func (m *Manager) TargetBaseURL() string {
	return m.target
}

// Regions returns the expanded region list.
func (m *Manager) Regions() []string {
	out := make([]string, len(m.regions))
	copy(out, m.regions)
	return out
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// gatewayName returns the name for the next created gateway.
func (m *Manager) gatewayName() string {
	if m.cfg.UniqueNames {
		return fmt.Sprintf("%s (%s)", m.BaseName(), uuid.NewString())
	}
	return m.BaseName()
}

// Build brings every region pool up to its desired count: discover
// existing gateways, reconcile, then create the remainder through the
// executor. Idempotent; a second call while active is a no-op.
// Creation failures are logged and reduce a region's yield, they are
// not retried and never abort other regions.
func (m *Manager) Build(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.State() == StateActive {
		return nil
	}

	ctx, endSpan := m.startSpan(ctx, "manager.build")
	defer endSpan()

	m.setState(StateBuilding)

	m.mu.Lock()
	for _, region := range m.regions {
		if _, ok := m.pools[region]; !ok {
			m.pools[region] = pool.New(m.BaseName(), region, m.cfg.GetGatewaysPerRegion())
		}
	}
	m.mu.Unlock()

	var tasks []Task
	for _, region := range m.regions {
		tasks = append(tasks, m.planRegion(ctx, region)...)
	}

	m.exec.Run(ctx, tasks)

	m.updateGauges()
	m.setState(StateActive)
	return ctx.Err()
}

// planRegion reconciles one region against discovery and returns one
// creation task per missing gateway.
func (m *Manager) planRegion(ctx context.Context, region string) []Task {
	p := m.pool(region)

	if p.Len() == 0 {
		discovered, err := m.driver.ListGateways(ctx, region)
		if err != nil {
			// Degrade to empty: a discovery outage must not block
			// fresh gateway creation. The driver already logged it.
			discovered = nil
		}
		descriptors := make([]pool.Descriptor, len(discovered))
		for i, g := range discovered {
			descriptors[i] = pool.Descriptor{Name: g.Name, ID: g.ID}
		}
		p.Reconcile(descriptors)
	}

	if n := p.Len(); n > 0 {
		m.logger.Info("reusing endpoints",
			observability.Int("count", n),
			observability.String("region", region),
			observability.String("target", m.target),
		)
	}

	numToCreate := p.NumToCreate()
	if numToCreate == 0 {
		return nil
	}

	m.logger.Info("building endpoints",
		observability.Int("count", numToCreate),
		observability.String("region", region),
		observability.String("target", m.target),
	)

	tasks := make([]Task, numToCreate)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) {
			name := m.gatewayName()
			ep, err := m.driver.CreateGateway(ctx, region, name, m.target)
			if err != nil {
				m.logger.Error("could not create gateway",
					observability.String("region", region),
					observability.Error(err),
				)
				return
			}
			p.Add(ep)
		}
	}
	return tasks
}

// Discover reconciles every region pool against the provider listing
// without creating or deleting anything. Useful for inspecting what a
// reuse-enabled deployment left behind.
func (m *Manager) Discover(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	for _, region := range m.regions {
		if _, ok := m.pools[region]; !ok {
			m.pools[region] = pool.New(m.BaseName(), region, m.cfg.GetGatewaysPerRegion())
		}
	}
	m.mu.Unlock()

	for _, region := range m.regions {
		discovered, err := m.driver.ListGateways(ctx, region)
		if err != nil {
			return err
		}
		descriptors := make([]pool.Descriptor, len(discovered))
		for i, g := range discovered {
			descriptors[i] = pool.Descriptor{Name: g.Name, ID: g.ID}
		}
		m.pool(region).Reconcile(descriptors)
	}

	m.updateGauges()
	return nil
}

// SelectEndpoint returns the hostname of a uniformly chosen live
// endpoint. With a region it draws from that region's pool; without,
// it draws from the flat union of all pools, so a region with more
// endpoints is proportionally more likely. Builds the pools first if
// that has not happened yet.
func (m *Manager) SelectEndpoint(ctx context.Context, region string) (string, error) {
	hostname, err := m.selectEndpoint(region)
	if errors.Is(err, ErrNotBuilt) {
		if buildErr := m.Build(ctx); buildErr != nil {
			return "", buildErr
		}
		hostname, err = m.selectEndpoint(region)
	}
	if err != nil {
		return "", err
	}
	if m.metrics != nil {
		m.metrics.RequestRouted(region)
	}
	return hostname, nil
}

func (m *Manager) selectEndpoint(region string) (string, error) {
	m.mu.RLock()
	if m.state != StateActive {
		m.mu.RUnlock()
		return "", ErrNotBuilt
	}

	if region != "" {
		p, ok := m.pools[region]
		m.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("manager: unknown region %q", region)
		}
		return p.SelectRandom()
	}

	pools := make([]*pool.RegionPool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.RUnlock()

	var hostnames []string
	for _, p := range pools {
		hostnames = append(hostnames, p.Hostnames()...)
	}
	if len(hostnames) == 0 {
		return "", pool.ErrEmptyPool
	}
	return hostnames[rand.IntN(len(hostnames))], nil
}

// Teardown deletes every tracked gateway, one region at a time
// through the executor. When ReuseGateways is set and force is not,
// deletion is skipped entirely and the pools stay intact for a later
// build or process to reclaim. Rate-limited deletes are retried on a
// fixed backoff up to the configured cap; other failures restore the
// endpoint so a future teardown can retry it.
func (m *Manager) Teardown(ctx context.Context, force bool) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	regions := make([]string, 0, len(m.pools))
	tracked := 0
	for region, p := range m.pools {
		regions = append(regions, region)
		tracked += p.Len()
	}
	m.mu.RUnlock()

	// Gate on tracked endpoints, not lifecycle state: a fresh process
	// that only ran Discover must still be able to delete what it found.
	if tracked == 0 {
		m.setState(StateUninitialized)
		return nil
	}

	ctx, endSpan := m.startSpan(ctx, "manager.teardown")
	defer endSpan()

	m.setState(StateTearingDown)

	tasks := make([]Task, len(regions))
	for i, region := range regions {
		tasks[i] = func(ctx context.Context) {
			m.teardownRegion(ctx, region, force)
		}
	}
	m.exec.Run(ctx, tasks)

	m.updateGauges()
	m.setState(StateUninitialized)
	m.logger.Info("teardown complete",
		observability.Int("regions", len(regions)),
		observability.Bool("force", force),
	)
	return ctx.Err()
}

// teardownRegion drains and deletes one region's endpoints.
func (m *Manager) teardownRegion(ctx context.Context, region string, force bool) {
	p := m.pool(region)

	if m.cfg.ReuseGateways && !force {
		m.logger.Warn("skipping region teardown, gateways kept for reuse",
			observability.String("region", region),
			observability.Int("count", p.Len()),
		)
		return
	}

	m.logger.Info("clearing region endpoints",
		observability.String("region", region),
		observability.Int("count", p.Len()),
	)

	// Drain first: restoring a failed endpoint while popping from the
	// same pool would loop forever on a persistent failure.
	var drained []endpoint.Endpoint
	for {
		e, ok := p.Pop()
		if !ok {
			break
		}
		drained = append(drained, e)
	}

	retryCfg := &retry.Config{
		MaxRetries: m.cfg.GetDeleteMaxRetries(),
		Backoff:    retry.NewConstantBackoff(m.cfg.GetDeleteBackoff()),
	}

	for _, e := range drained {
		err := retry.Do(ctx, retryCfg, func() error {
			return m.driver.DeleteGateway(ctx, region, e.GatewayID)
		}, &retry.Options{
			ShouldRetry: cloud.IsRetryableDelete,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				if m.metrics != nil {
					m.metrics.DeleteRetried(region)
				}
				m.logger.Error("rate limited deleting gateway, backing off",
					observability.String("region", region),
					observability.String("gateway_id", e.GatewayID),
					observability.Int("attempt", attempt),
					observability.Duration("backoff", backoff),
				)
			},
		})
		if err != nil {
			// Keep it tracked so a future teardown retries it.
			p.Restore(e)
			m.logger.Error("could not delete gateway, keeping it tracked",
				observability.String("region", region),
				observability.String("gateway_id", e.GatewayID),
				observability.Error(err),
			)
		}
	}
}

// RegionStatus is a snapshot of one region pool.
type RegionStatus struct {
	Region    string   `json:"region"`
	Desired   int      `json:"desired"`
	Tracked   int      `json:"tracked"`
	Hostnames []string `json:"hostnames"`
}

// Status returns the lifecycle state and a per-region snapshot,
// sorted by region name.
func (m *Manager) Status() (State, []RegionStatus) {
	m.mu.RLock()
	state := m.state
	pools := make([]*pool.RegionPool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.RUnlock()

	statuses := make([]RegionStatus, 0, len(pools))
	for _, p := range pools {
		statuses = append(statuses, RegionStatus{
			Region:    p.Region(),
			Desired:   p.DesiredCount(),
			Tracked:   p.Len(),
			Hostnames: p.Hostnames(),
		})
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Region < statuses[j].Region
	})
	return state, statuses
}

// pool returns the pool for a region; the pool must exist.
func (m *Manager) pool(region string) *pool.RegionPool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pools[region]
}

// updateGauges refreshes the tracked-endpoint gauges.
func (m *Manager) updateGauges() {
	if m.metrics == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for region, p := range m.pools {
		m.metrics.SetTrackedEndpoints(region, p.Len())
	}
}

// startSpan opens a tracing span when a tracer is configured.
func (m *Manager) startSpan(ctx context.Context, name string) (context.Context, func()) {
	if m.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := m.tracer.Start(ctx, name,
		attribute.String("target", m.target),
		attribute.Int("regions", len(m.regions)),
	)
	return ctx, func() { span.End() }
}
