// Package grpcapi exposes the standard gRPC health service so orchestrators can
// probe the backend and its asset store.
package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"custody-backend/internal/api/grpc/interceptor"
	"custody-backend/internal/logger"
)

// StoreService is the health service name that tracks the asset store.
const StoreService = "custody.v1.AssetStore"

// Pinger checks that a dependency is reachable.
type Pinger func(ctx context.Context) error

type HealthServer struct {
	Server *grpc.Server
	health *health.Server
}

func NewHealthServer() *HealthServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptor.RecoveryUnary(),
		interceptor.LoggingUnary(),
	))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	// Register reflection service for grpcurl
	reflection.Register(s)

	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(StoreService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{Server: s, health: h}
}

// Check pings once and records the resulting status.
func (h *HealthServer) Check(ctx context.Context, ping Pinger) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if err := ping(ctx); err != nil {
		logger.Warn("Asset store health check failed", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus(StoreService, st)
	return st
}

// Watch re-checks the store every interval until ctx is done.
func (h *HealthServer) Watch(ctx context.Context, ping Pinger, interval time.Duration) {
	h.Check(ctx, ping)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval/2)
			h.Check(checkCtx, ping)
			cancel()
		}
	}
}

// Shutdown marks everything NOT_SERVING and stops the server gracefully.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
	h.Server.GracefulStop()
}
