package api

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// EngineServiceName is the health service name reported for the event engine.
const EngineServiceName = "trading.engine.EventEngine"

// RunningChecker reports whether the event engine is running.
type RunningChecker interface {
	Running() bool
}

// HealthServer serves grpc.health.v1 and mirrors the engine's running state.
type HealthServer struct {
	Server *grpc.Server
	health *health.Server
	engine RunningChecker
}

func NewHealthServer(engine RunningChecker, opts ...grpc.ServerOption) *HealthServer {
	hs := &HealthServer{
		Server: grpc.NewServer(opts...),
		health: health.NewServer(),
		engine: engine,
	}
	healthpb.RegisterHealthServer(hs.Server, hs.health)
	hs.Sync()
	return hs
}

// Sync copies the current engine state into the health status table.
func (h *HealthServer) Sync() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if h.engine.Running() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(EngineServiceName, status)
}

// Watch re-syncs every interval until ctx is done.
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sync()
		}
	}
}

func (h *HealthServer) Serve(lis net.Listener) error {
	return h.Server.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.Server.GracefulStop()
}
