package cloud

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/egresslab/gwrotor/internal/endpoint"
	"github.com/egresslab/gwrotor/internal/observability"
)

// Default control-plane settings.
const (
	// DefaultPaginationLimit is the page size for gateway listings.
	DefaultPaginationLimit = 50

	// DefaultRequestsPerSecond bounds control-plane call rate so bulk
	// provisioning does not trip the provider's own throttling.
	DefaultRequestsPerSecond = 10

	// DefaultBurst is the control-plane rate limiter burst size.
	DefaultBurst = 5

	// StageName is the fixed deployment stage every gateway serves.
	StageName = "proxy-stage"

	// proxyPathPart matches any remaining path segments.
	proxyPathPart = "{proxy+}"

	breakerTimeout = 30 * time.Second
)

// Request parameter names used by the method/integration configuration.
// The three custom headers are re-mapped by the gateway integration
// onto the outbound X-Forwarded-For, Host, and User-Agent headers.
const (
	methodParamProxy     = "method.request.path.proxy"
	methodParamForwarded = "method.request.header.X-Forwarded-Header"
	methodParamHost      = "method.request.header.X-Host"
	methodParamUserAgent = "method.request.header.X-User-Agent"

	integrationParamProxy     = "integration.request.path.proxy"
	integrationParamForwarded = "integration.request.header.X-Forwarded-For"
	integrationParamHost      = "integration.request.header.Host"
	integrationParamUserAgent = "integration.request.header.User-Agent"
)

// restAPIClient is the subset of the API Gateway control-plane client
// used by the driver. *apigateway.Client satisfies it; tests install
// fakes through the client factory.
type restAPIClient interface {
	GetRestApis(ctx context.Context, params *apigateway.GetRestApisInput,
		optFns ...func(*apigateway.Options)) (*apigateway.GetRestApisOutput, error)
	CreateRestApi(ctx context.Context, params *apigateway.CreateRestApiInput,
		optFns ...func(*apigateway.Options)) (*apigateway.CreateRestApiOutput, error)
	GetResources(ctx context.Context, params *apigateway.GetResourcesInput,
		optFns ...func(*apigateway.Options)) (*apigateway.GetResourcesOutput, error)
	CreateResource(ctx context.Context, params *apigateway.CreateResourceInput,
		optFns ...func(*apigateway.Options)) (*apigateway.CreateResourceOutput, error)
	PutMethod(ctx context.Context, params *apigateway.PutMethodInput,
		optFns ...func(*apigateway.Options)) (*apigateway.PutMethodOutput, error)
	PutIntegration(ctx context.Context, params *apigateway.PutIntegrationInput,
		optFns ...func(*apigateway.Options)) (*apigateway.PutIntegrationOutput, error)
	CreateDeployment(ctx context.Context, params *apigateway.CreateDeploymentInput,
		optFns ...func(*apigateway.Options)) (*apigateway.CreateDeploymentOutput, error)
	DeleteRestApi(ctx context.Context, params *apigateway.DeleteRestApiInput,
		optFns ...func(*apigateway.Options)) (*apigateway.DeleteRestApiOutput, error)
}

// clientFactory builds a control-plane client for one region.
type clientFactory func(region string) restAPIClient

// Credentials is the cloud credential pair used for control-plane calls.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// AWSDriverConfig contains driver configuration parameters.
type AWSDriverConfig struct {
	// Credentials is the credential pair for control-plane calls.
	Credentials Credentials

	// PaginationLimit is the page size for gateway listings.
	// Default is 50.
	PaginationLimit int

	// RequestsPerSecond bounds the control-plane call rate.
	// Default is 10.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Default is 5.
	Burst int
}

// GetPaginationLimit returns the effective pagination limit.
func (c *AWSDriverConfig) GetPaginationLimit() int32 {
	if c == nil || c.PaginationLimit <= 0 {
		return DefaultPaginationLimit
	}
	return int32(c.PaginationLimit)
}

// GetRequestsPerSecond returns the effective control-plane rate.
func (c *AWSDriverConfig) GetRequestsPerSecond() float64 {
	if c == nil || c.RequestsPerSecond <= 0 {
		return DefaultRequestsPerSecond
	}
	return c.RequestsPerSecond
}

// GetBurst returns the effective rate limiter burst.
func (c *AWSDriverConfig) GetBurst() int {
	if c == nil || c.Burst <= 0 {
		return DefaultBurst
	}
	return c.Burst
}

// AWSDriver implements Driver against the AWS API Gateway control
// plane. Clients are built lazily per region and cached. A shared
// rate limiter bounds all control-plane calls, and a circuit breaker
// around discovery short-circuits to the degrade-to-empty path during
// a provider outage.
type AWSDriver struct {
	cfg        *AWSDriverConfig
	logger     observability.Logger
	metrics    *observability.Metrics
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	newClient  clientFactory
	mu         sync.Mutex
	clients    map[string]restAPIClient
	pagination int32
}

// AWSDriverOption is a functional option for configuring the driver.
type AWSDriverOption func(*AWSDriver)

// WithDriverLogger sets the driver logger.
func WithDriverLogger(logger observability.Logger) AWSDriverOption {
	return func(d *AWSDriver) {
		d.logger = logger
	}
}

// WithDriverMetrics sets the driver metrics.
func WithDriverMetrics(metrics *observability.Metrics) AWSDriverOption {
	return func(d *AWSDriver) {
		d.metrics = metrics
	}
}

// withClientFactory overrides the client factory. Test hook.
func withClientFactory(factory clientFactory) AWSDriverOption {
	return func(d *AWSDriver) {
		d.newClient = factory
	}
}

// NewAWSDriver creates a new AWS control-plane driver.
func NewAWSDriver(cfg *AWSDriverConfig, opts ...AWSDriverOption) *AWSDriver {
	if cfg == nil {
		cfg = &AWSDriverConfig{}
	}

	d := &AWSDriver{
		cfg:        cfg,
		logger:     observability.NopLogger(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.GetRequestsPerSecond()), cfg.GetBurst()),
		clients:    make(map[string]restAPIClient),
		pagination: cfg.GetPaginationLimit(),
	}

	d.newClient = func(region string) restAPIClient {
		return apigateway.New(apigateway.Options{
			Region: region,
			Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
				cfg.Credentials.AccessKeyID,
				cfg.Credentials.SecretAccessKey,
				cfg.Credentials.SessionToken,
			)),
		})
	}

	for _, opt := range opts {
		opt(d)
	}

	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gateway-discovery",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Info("discovery breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return d
}

// client returns the cached control-plane client for a region.
func (d *AWSDriver) client(region string) restAPIClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[region]
	if !ok {
		c = d.newClient(region)
		d.clients[region] = c
	}
	return c
}

// ListGateways implements Driver.
func (d *AWSDriver) ListGateways(ctx context.Context, region string) ([]Gateway, error) {
	result, err := d.breaker.Execute(func() (interface{}, error) {
		return d.listGateways(ctx, region)
	})
	if err != nil {
		if d.metrics != nil {
			d.metrics.DiscoveryFailed(region)
		}
		d.logger.Error("could not list gateways",
			observability.String("region", region),
			observability.Error(err),
		)
		return nil, &DiscoveryError{Region: region, Cause: err}
	}
	return result.([]Gateway), nil
}

// listGateways pages through the listing endpoint until the provider
// stops returning a continuation position.
func (d *AWSDriver) listGateways(ctx context.Context, region string) ([]Gateway, error) {
	client := d.client(region)

	var gateways []Gateway
	var position *string
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		out, err := client.GetRestApis(ctx, &apigateway.GetRestApisInput{
			Limit:    aws.Int32(d.pagination),
			Position: position,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range out.Items {
			gateways = append(gateways, Gateway{
				Name: aws.ToString(item.Name),
				ID:   aws.ToString(item.Id),
			})
		}

		if out.Position == nil {
			return gateways, nil
		}
		position = out.Position
	}
}

// CreateGateway implements Driver.
func (d *AWSDriver) CreateGateway(ctx context.Context, region, name, targetBaseURL string) (endpoint.Endpoint, error) {
	client := d.client(region)

	fail := func(op, gatewayID string, cause error) (endpoint.Endpoint, error) {
		if d.metrics != nil {
			d.metrics.CreateFailed(region)
		}
		return endpoint.Endpoint{}, &CreateError{
			Op:        op,
			Region:    region,
			GatewayID: gatewayID,
			Cause:     cause,
		}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return fail("create_rest_api", "", err)
	}
	created, err := client.CreateRestApi(ctx, &apigateway.CreateRestApiInput{
		Name: aws.String(name),
		EndpointConfiguration: &types.EndpointConfiguration{
			Types: []types.EndpointType{types.EndpointTypeRegional},
		},
	})
	if err != nil {
		return fail("create_rest_api", "", err)
	}
	gatewayID := aws.ToString(created.Id)

	if err := d.limiter.Wait(ctx); err != nil {
		return fail("get_resources", gatewayID, err)
	}
	resources, err := client.GetResources(ctx, &apigateway.GetResourcesInput{
		RestApiId: aws.String(gatewayID),
	})
	if err != nil {
		return fail("get_resources", gatewayID, err)
	}
	if len(resources.Items) == 0 {
		return fail("get_resources", gatewayID, errors.New("no root resource"))
	}
	rootResourceID := aws.ToString(resources.Items[0].Id)

	if err := d.limiter.Wait(ctx); err != nil {
		return fail("create_resource", gatewayID, err)
	}
	proxyResource, err := client.CreateResource(ctx, &apigateway.CreateResourceInput{
		RestApiId: aws.String(gatewayID),
		ParentId:  aws.String(rootResourceID),
		PathPart:  aws.String(proxyPathPart),
	})
	if err != nil {
		return fail("create_resource", gatewayID, err)
	}
	proxyResourceID := aws.ToString(proxyResource.Id)

	// Root before wildcard, both before the deployment: the deployment
	// snapshot captures whatever configuration exists when it is issued.
	if err := d.configureResource(ctx, client, gatewayID, rootResourceID, targetBaseURL); err != nil {
		return fail("configure_root", gatewayID, err)
	}
	if err := d.configureResource(ctx, client, gatewayID, proxyResourceID, targetBaseURL+"/{proxy}"); err != nil {
		return fail("configure_proxy", gatewayID, err)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return fail("create_deployment", gatewayID, err)
	}
	_, err = client.CreateDeployment(ctx, &apigateway.CreateDeploymentInput{
		RestApiId: aws.String(gatewayID),
		StageName: aws.String(StageName),
	})
	if err != nil {
		return fail("create_deployment", gatewayID, err)
	}

	if d.metrics != nil {
		d.metrics.GatewayCreated(region)
	}
	d.logger.Info("created gateway",
		observability.String("region", region),
		observability.String("gateway_id", gatewayID),
	)

	return endpoint.Endpoint{
		Name:      name,
		GatewayID: gatewayID,
		Region:    region,
	}, nil
}

// configureResource registers the any-method/no-auth method and the
// HTTP-proxy integration on one resource, mapping the spoof headers
// onto the outbound request.
func (d *AWSDriver) configureResource(ctx context.Context, client restAPIClient, gatewayID, resourceID, uri string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := client.PutMethod(ctx, &apigateway.PutMethodInput{
		RestApiId:         aws.String(gatewayID),
		ResourceId:        aws.String(resourceID),
		HttpMethod:        aws.String("ANY"),
		AuthorizationType: aws.String("NONE"),
		RequestParameters: map[string]bool{
			methodParamProxy:     true,
			methodParamForwarded: true,
			methodParamHost:      true,
			methodParamUserAgent: true,
		},
	})
	if err != nil {
		return err
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = client.PutIntegration(ctx, &apigateway.PutIntegrationInput{
		RestApiId:             aws.String(gatewayID),
		ResourceId:            aws.String(resourceID),
		Type:                  types.IntegrationTypeHttpProxy,
		HttpMethod:            aws.String("ANY"),
		IntegrationHttpMethod: aws.String("ANY"),
		Uri:                   aws.String(uri),
		ConnectionType:        types.ConnectionTypeInternet,
		RequestParameters: map[string]string{
			integrationParamProxy:     methodParamProxy,
			integrationParamForwarded: methodParamForwarded,
			integrationParamHost:      methodParamHost,
			integrationParamUserAgent: methodParamUserAgent,
		},
	})
	return err
}

// DeleteGateway implements Driver.
func (d *AWSDriver) DeleteGateway(ctx context.Context, region, gatewayID string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return &DeleteError{Region: region, GatewayID: gatewayID, Cause: err}
	}

	_, err := d.client(region).DeleteRestApi(ctx, &apigateway.DeleteRestApiInput{
		RestApiId: aws.String(gatewayID),
	})
	if err != nil {
		var throttled *types.TooManyRequestsException
		return &DeleteError{
			Region:    region,
			GatewayID: gatewayID,
			Retryable: errors.As(err, &throttled),
			Cause:     err,
		}
	}

	if d.metrics != nil {
		d.metrics.GatewayDeleted(region)
	}
	d.logger.Info("deleted gateway",
		observability.String("region", region),
		observability.String("gateway_id", gatewayID),
	)
	return nil
}
