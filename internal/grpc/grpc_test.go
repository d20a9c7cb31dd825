package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startBufconn(t *testing.T, h *HealthServer) *HealthClient {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	s := NewServer(h)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	client, err := NewHealthClient(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestHealthReflectsIntegratorAvailability(t *testing.T) {
	h := NewHealthServer(nil)
	client := startBufconn(t, h)
	ctx := context.Background()

	st, err := client.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	st, err = client.Check(ctx, IntegratorService)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	h.SetIntegratorAvailable(false)
	st, err = client.Check(ctx, IntegratorService)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	h.SetIntegratorAvailable(true)
	st, err = client.Check(ctx, IntegratorService)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)
}

func TestHealthUnknownService(t *testing.T) {
	client := startBufconn(t, NewHealthServer(nil))

	_, err := client.Check(context.Background(), "goarea.Missing")
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthShutdown(t *testing.T) {
	h := NewHealthServer(nil)
	client := startBufconn(t, h)

	h.Shutdown()
	st, err := client.Check(context.Background(), IntegratorService)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)
}
