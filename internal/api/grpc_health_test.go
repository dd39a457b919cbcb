package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestHealthServerReflectsEngineState(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	svc := newFakeEngine()
	hs := NewHealthServer(svc)
	go func() { _ = hs.Serve(lis) }()
	defer hs.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	check := func(service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN, err
		}
		return resp.GetStatus(), nil
	}

	st, err := check(EngineServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	svc.setRunning(false)
	hs.Sync()
	st, err = check("")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hs.Watch(ctx, 10*time.Millisecond)
	svc.setRunning(true)
	require.Eventually(t, func() bool {
		st, err := check(EngineServiceName)
		return err == nil && st == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	_, err = check("unknown.Service")
	assert.Equal(t, codes.NotFound, status.Code(err))
}
