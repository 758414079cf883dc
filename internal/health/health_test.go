package health

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func dialChecker(t *testing.T, c *Checker) healthpb.HealthClient {
	t.Helper()
	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	c.Register(server)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestChecker_NotServingUntilFirstCheck(t *testing.T) {
	c := New(map[string]Probe{"postgres": func(context.Context) error { return nil }})
	client := dialChecker(t, c)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ServiceName))

	_, ready := c.Check(context.Background())
	assert.True(t, ready)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ServiceName+".postgres"))
}

func TestChecker_FailingProbe(t *testing.T) {
	redisErr := errors.New("dial tcp: connection refused")
	c := New(map[string]Probe{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return redisErr },
	})
	client := dialChecker(t, c)

	out, ready := c.Check(context.Background())
	assert.False(t, ready)
	assert.Equal(t, "ok", out["postgres"])
	assert.Equal(t, redisErr.Error(), out["redis"])

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ServiceName+".postgres"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ServiceName+".redis"))
}

func TestChecker_RunStopsWithContext(t *testing.T) {
	calls := make(chan struct{}, 16)
	c := New(map[string]Probe{"postgres": func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("probe was not called")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestChecker_Shutdown(t *testing.T) {
	c := New(map[string]Probe{"postgres": func(context.Context) error { return nil }})
	client := dialChecker(t, c)
	c.Check(context.Background())

	c.Shutdown()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ServiceName))
}
