//go:build integration

package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultNATSImage = "nats:2.11.7-alpine"

// TestClient pairs a throwaway NATS container with a Client connected to
// it. Both are removed by t.Cleanup.
type TestClient struct {
	Client *Client
	URL    string

	container testcontainers.Container
}

type testSetup struct {
	image        string
	dialTimeout  time.Duration
	startTimeout time.Duration
}

// TestOption adjusts NewTestClient.
type TestOption func(*testSetup)

// WithNATSVersion runs nats:<version> instead of the default image.
func WithNATSVersion(version string) TestOption {
	return func(s *testSetup) { s.image = "nats:" + version }
}

// WithStartTimeout bounds how long the container may take to come up.
func WithStartTimeout(d time.Duration) TestOption {
	return func(s *testSetup) { s.startTimeout = d }
}

// NewTestClient starts NATS in a container and connects a Client with
// reconnects and health probing turned off, so tests see failures at once.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	setup := testSetup{image: defaultNATSImage, dialTimeout: 5 * time.Second, startTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&setup)
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        setup.image,
		Cmd:          []string{"--port", "4222", "--http_port", "8222"},
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/healthz").WithPort("8222/tcp").WithStartupTimeout(setup.startTimeout),
		),
	}
	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start %s: %v", setup.image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	if err != nil {
		t.Fatalf("resolve NATS endpoint: %v", err)
	}

	client, err := NewClient(endpoint,
		WithName(fmt.Sprintf("wdat-test-%s", t.Name())),
		WithTimeout(setup.dialTimeout),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, setup.dialTimeout)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
		t.Fatalf("connect to %s: %v", endpoint, err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	return &TestClient{Client: client, URL: endpoint, container: container}
}

// Stop halts the container but keeps it, so a test can observe a lost
// connection and then Start it again.
func (tc *TestClient) Stop(ctx context.Context) error {
	grace := 5 * time.Second
	return tc.container.Stop(ctx, &grace)
}

// Start resumes a container halted by Stop.
func (tc *TestClient) Start(ctx context.Context) error {
	return tc.container.Start(ctx)
}
