package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the rotation manager.
type Metrics struct {
	gatewaysCreated   *prometheus.CounterVec
	gatewaysDeleted   *prometheus.CounterVec
	createFailures    *prometheus.CounterVec
	deleteRetries     *prometheus.CounterVec
	discoveryFailures *prometheus.CounterVec
	trackedEndpoints  *prometheus.GaugeVec
	requestsRouted    *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewMetrics creates a new Metrics instance on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gwrotor"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.gatewaysCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateways_created_total",
			Help:      "Total number of proxy gateways created",
		},
		[]string{"region"},
	)

	m.gatewaysDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateways_deleted_total",
			Help:      "Total number of proxy gateways deleted",
		},
		[]string{"region"},
	)

	m.createFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_create_failures_total",
			Help:      "Total number of failed gateway creations",
		},
		[]string{"region"},
	)

	m.deleteRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_delete_retries_total",
			Help:      "Total number of rate-limited delete retries",
		},
		[]string{"region"},
	)

	m.discoveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_discovery_failures_total",
			Help:      "Total number of failed gateway discovery listings",
		},
		[]string{"region"},
	)

	m.trackedEndpoints = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_endpoints",
			Help:      "Number of endpoints currently tracked per region",
		},
		[]string{"region"},
	)

	m.requestsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_routed_total",
			Help:      "Total number of requests routed through a gateway",
		},
		[]string{"region"},
	)

	m.registry.MustRegister(
		m.gatewaysCreated,
		m.gatewaysDeleted,
		m.createFailures,
		m.deleteRetries,
		m.discoveryFailures,
		m.trackedEndpoints,
		m.requestsRouted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// GatewayCreated records a successful gateway creation.
func (m *Metrics) GatewayCreated(region string) {
	m.gatewaysCreated.WithLabelValues(region).Inc()
}

// GatewayDeleted records a successful gateway deletion.
func (m *Metrics) GatewayDeleted(region string) {
	m.gatewaysDeleted.WithLabelValues(region).Inc()
}

// CreateFailed records a failed gateway creation.
func (m *Metrics) CreateFailed(region string) {
	m.createFailures.WithLabelValues(region).Inc()
}

// DeleteRetried records a rate-limited delete retry.
func (m *Metrics) DeleteRetried(region string) {
	m.deleteRetries.WithLabelValues(region).Inc()
}

// DiscoveryFailed records a failed discovery listing.
func (m *Metrics) DiscoveryFailed(region string) {
	m.discoveryFailures.WithLabelValues(region).Inc()
}

// SetTrackedEndpoints records the current pool size for a region.
func (m *Metrics) SetTrackedEndpoints(region string, n int) {
	m.trackedEndpoints.WithLabelValues(region).Set(float64(n))
}

// RequestRouted records a request routed through a gateway. The region
// label is "any" when the caller did not pin a region.
func (m *Metrics) RequestRouted(region string) {
	if region == "" {
		region = "any"
	}
	m.requestsRouted.WithLabelValues(region).Inc()
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
