package cloud

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPIClient records the order of control-plane calls and delegates
// to overridable handlers.
type fakeAPIClient struct {
	mu    sync.Mutex
	calls []string

	getRestApis      func(*apigateway.GetRestApisInput) (*apigateway.GetRestApisOutput, error)
	createRestAPI    func(*apigateway.CreateRestApiInput) (*apigateway.CreateRestApiOutput, error)
	putIntegration   func(*apigateway.PutIntegrationInput) (*apigateway.PutIntegrationOutput, error)
	deleteRestAPI    func(*apigateway.DeleteRestApiInput) (*apigateway.DeleteRestApiOutput, error)
	createDeployment func(*apigateway.CreateDeploymentInput) (*apigateway.CreateDeploymentOutput, error)
}

func (f *fakeAPIClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPIClient) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPIClient) GetRestApis(_ context.Context, params *apigateway.GetRestApisInput,
	_ ...func(*apigateway.Options)) (*apigateway.GetRestApisOutput, error) {
	f.record("get_rest_apis")
	if f.getRestApis != nil {
		return f.getRestApis(params)
	}
	return &apigateway.GetRestApisOutput{}, nil
}

func (f *fakeAPIClient) CreateRestApi(_ context.Context, params *apigateway.CreateRestApiInput,
	_ ...func(*apigateway.Options)) (*apigateway.CreateRestApiOutput, error) {
	f.record("create_rest_api")
	if f.createRestAPI != nil {
		return f.createRestAPI(params)
	}
	return &apigateway.CreateRestApiOutput{Id: aws.String("api123")}, nil
}

func (f *fakeAPIClient) GetResources(_ context.Context, _ *apigateway.GetResourcesInput,
	_ ...func(*apigateway.Options)) (*apigateway.GetResourcesOutput, error) {
	f.record("get_resources")
	return &apigateway.GetResourcesOutput{
		Items: []types.Resource{{Id: aws.String("root")}},
	}, nil
}

func (f *fakeAPIClient) CreateResource(_ context.Context, _ *apigateway.CreateResourceInput,
	_ ...func(*apigateway.Options)) (*apigateway.CreateResourceOutput, error) {
	f.record("create_resource")
	return &apigateway.CreateResourceOutput{Id: aws.String("proxyres")}, nil
}

func (f *fakeAPIClient) PutMethod(_ context.Context, params *apigateway.PutMethodInput,
	_ ...func(*apigateway.Options)) (*apigateway.PutMethodOutput, error) {
	f.record("put_method:" + aws.ToString(params.ResourceId))
	return &apigateway.PutMethodOutput{}, nil
}

func (f *fakeAPIClient) PutIntegration(_ context.Context, params *apigateway.PutIntegrationInput,
	_ ...func(*apigateway.Options)) (*apigateway.PutIntegrationOutput, error) {
	f.record("put_integration:" + aws.ToString(params.ResourceId))
	if f.putIntegration != nil {
		return f.putIntegration(params)
	}
	return &apigateway.PutIntegrationOutput{}, nil
}

func (f *fakeAPIClient) CreateDeployment(_ context.Context, params *apigateway.CreateDeploymentInput,
	_ ...func(*apigateway.Options)) (*apigateway.CreateDeploymentOutput, error) {
	f.record("create_deployment")
	if f.createDeployment != nil {
		return f.createDeployment(params)
	}
	return &apigateway.CreateDeploymentOutput{}, nil
}

func (f *fakeAPIClient) DeleteRestApi(_ context.Context, params *apigateway.DeleteRestApiInput,
	_ ...func(*apigateway.Options)) (*apigateway.DeleteRestApiOutput, error) {
	f.record("delete_rest_api")
	if f.deleteRestAPI != nil {
		return f.deleteRestAPI(params)
	}
	return &apigateway.DeleteRestApiOutput{}, nil
}

func newTestDriver(fake *fakeAPIClient) *AWSDriver {
	return NewAWSDriver(
		&AWSDriverConfig{RequestsPerSecond: 10000, Burst: 100},
		withClientFactory(func(string) restAPIClient { return fake }),
	)
}

func TestListGatewaysPagination(t *testing.T) {
	t.Parallel()

	pages := map[string]*apigateway.GetRestApisOutput{
		"": {
			Items:    []types.RestApi{{Name: aws.String("a"), Id: aws.String("1")}},
			Position: aws.String("p1"),
		},
		"p1": {
			Items:    []types.RestApi{{Name: aws.String("b"), Id: aws.String("2")}},
			Position: aws.String("p2"),
		},
		"p2": {
			Items: []types.RestApi{{Name: aws.String("c"), Id: aws.String("3")}},
		},
	}

	fake := &fakeAPIClient{
		getRestApis: func(params *apigateway.GetRestApisInput) (*apigateway.GetRestApisOutput, error) {
			assert.Equal(t, int32(50), aws.ToInt32(params.Limit))
			return pages[aws.ToString(params.Position)], nil
		},
	}

	driver := newTestDriver(fake)
	gateways, err := driver.ListGateways(context.Background(), "us-east-1")
	require.NoError(t, err)

	assert.Equal(t, []Gateway{
		{Name: "a", ID: "1"},
		{Name: "b", ID: "2"},
		{Name: "c", ID: "3"},
	}, gateways)
}

func TestListGatewaysDiscoveryError(t *testing.T) {
	t.Parallel()

	fake := &fakeAPIClient{
		getRestApis: func(*apigateway.GetRestApisInput) (*apigateway.GetRestApisOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	driver := newTestDriver(fake)
	gateways, err := driver.ListGateways(context.Background(), "us-east-1")

	assert.Nil(t, gateways)
	assert.True(t, IsDiscoveryError(err))
}

func TestCreateGatewaySequence(t *testing.T) {
	t.Parallel()

	fake := &fakeAPIClient{}
	driver := newTestDriver(fake)

	ep, err := driver.CreateGateway(context.Background(), "us-east-1",
		"gwrotor Proxy Gateway for https://example.com", "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, "api123", ep.GatewayID)
	assert.Equal(t, "us-east-1", ep.Region)
	assert.Equal(t, "api123.execute-api.us-east-1.amazonaws.com", ep.Hostname())

	// Root configuration completes before the wildcard resource's, and
	// the deployment comes last.
	assert.Equal(t, []string{
		"create_rest_api",
		"get_resources",
		"create_resource",
		"put_method:root",
		"put_integration:root",
		"put_method:proxyres",
		"put_integration:proxyres",
		"create_deployment",
	}, fake.recorded())
}

func TestCreateGatewayWildcardURI(t *testing.T) {
	t.Parallel()

	var uris []string
	fake := &fakeAPIClient{
		putIntegration: func(params *apigateway.PutIntegrationInput) (*apigateway.PutIntegrationOutput, error) {
			uris = append(uris, aws.ToString(params.Uri))
			return &apigateway.PutIntegrationOutput{}, nil
		},
	}

	driver := newTestDriver(fake)
	_, err := driver.CreateGateway(context.Background(), "us-east-1", "name", "https://example.com")
	require.NoError(t, err)

	require.Len(t, uris, 2)
	assert.Equal(t, "https://example.com", uris[0])
	assert.Equal(t, "https://example.com/{proxy}", uris[1])
}

func TestCreateGatewayAbortsOnFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeAPIClient{
		putIntegration: func(*apigateway.PutIntegrationInput) (*apigateway.PutIntegrationOutput, error) {
			return nil, errors.New("integration rejected")
		},
	}

	driver := newTestDriver(fake)
	_, err := driver.CreateGateway(context.Background(), "us-east-1", "name", "https://example.com")

	var createErr *CreateError
	require.ErrorAs(t, err, &createErr)
	assert.Equal(t, "configure_root", createErr.Op)
	assert.Equal(t, "api123", createErr.GatewayID)
	assert.NotContains(t, fake.recorded(), "create_deployment")
}

func TestDeleteGatewayThrottled(t *testing.T) {
	t.Parallel()

	fake := &fakeAPIClient{
		deleteRestAPI: func(*apigateway.DeleteRestApiInput) (*apigateway.DeleteRestApiOutput, error) {
			return nil, &types.TooManyRequestsException{Message: aws.String("slow down")}
		},
	}

	driver := newTestDriver(fake)
	err := driver.DeleteGateway(context.Background(), "us-east-1", "gw1")

	assert.True(t, IsRetryableDelete(err))
}

func TestDeleteGatewayTerminal(t *testing.T) {
	t.Parallel()

	fake := &fakeAPIClient{
		deleteRestAPI: func(*apigateway.DeleteRestApiInput) (*apigateway.DeleteRestApiOutput, error) {
			return nil, errors.New("not found")
		},
	}

	driver := newTestDriver(fake)
	err := driver.DeleteGateway(context.Background(), "us-east-1", "gw1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelete)
	assert.False(t, IsRetryableDelete(err))
}

func TestDeleteGatewaySuccess(t *testing.T) {
	t.Parallel()

	fake := &fakeAPIClient{}
	driver := newTestDriver(fake)

	require.NoError(t, driver.DeleteGateway(context.Background(), "us-east-1", "gw1"))
	assert.Equal(t, []string{"delete_rest_api"}, fake.recorded())
}
