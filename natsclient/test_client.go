package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// natsImage is the server image started for tests.
const natsImage = "nats:2.11.7-alpine"

// TestClient couples a connected Client with the container it talks to.
type TestClient struct {
	Client *Client
	URL    string
}

type testSetup struct {
	timeout      time.Duration
	startTimeout time.Duration
	clientOpts   []ClientOption
}

// TestOption adjusts NewTestClient.
type TestOption func(*testSetup)

// WithFastStartup shortens the connect and startup timeouts.
func WithFastStartup() TestOption {
	return func(s *testSetup) {
		s.timeout = 2 * time.Second
		s.startTimeout = 10 * time.Second
	}
}

// WithClientOptions appends options for the client under test.
func WithClientOptions(opts ...ClientOption) TestOption {
	return func(s *testSetup) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// NewTestClient starts a NATS container, connects a Client to it and
// registers cleanup of both with t. The test fails when either step fails.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	setup := testSetup{timeout: 5 * time.Second, startTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&setup)
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        natsImage,
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          []string{"--port", "4222", "--http_port", "8222"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(setup.startTimeout),
			),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start nats container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := containerURL(ctx, container)
	if err != nil {
		t.Fatalf("nats container address: %v", err)
	}

	clientOpts := append([]ClientOption{
		WithTimeout(setup.timeout),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	}, setup.clientOpts...)
	client, err := NewClient(url, clientOpts...)
	if err != nil {
		t.Fatalf("create nats client: %v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, setup.timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		t.Fatalf("connect to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	if err := client.WaitForConnection(connectCtx); err != nil {
		t.Fatalf("wait for %s: %v", url, err)
	}

	return &TestClient{Client: client, URL: url}
}

func containerURL(ctx context.Context, c testcontainers.Container) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, "4222")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("nats://%s:%s", host, port.Port()), nil
}
