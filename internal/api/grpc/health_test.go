package grpcapi

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

func dial(t *testing.T, h *HealthServer) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = h.Server.Serve(lis) }()
	t.Cleanup(h.Shutdown)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func serving(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServer(t *testing.T) {
	h := NewHealthServer()
	client := dial(t, h)
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, serving(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, serving(t, client, StoreService))

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, h.Check(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, serving(t, client, StoreService))

	down := func(context.Context) error { return errors.New("connection refused") }
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, h.Check(ctx, down))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, serving(t, client, StoreService))
}

func TestHealthServer_WatchStopsWithContext(t *testing.T) {
	h := NewHealthServer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pings := 0
	h.Watch(ctx, func(context.Context) error { pings++; return nil }, time.Hour)
	assert.Equal(t, 1, pings)
	h.Shutdown()
}
