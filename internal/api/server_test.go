package api

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"parkwise/internal/config"
	"parkwise/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startGRPC(t *testing.T, limiter *RateLimiter, checks map[string]ReadinessCheck) (*GRPCServer, healthpb.HealthClient) {
	t.Helper()
	logger := zerolog.Nop()

	srv, err := NewGRPCServer(config.APIConfig{}, limiter, checks, &logger)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func TestGRPCHealth_FollowsReadiness(t *testing.T) {
	var failing atomic.Bool
	checks := map[string]ReadinessCheck{
		"database": func(context.Context) error {
			if failing.Load() {
				return errors.New("database is locked")
			}
			return nil
		},
	}
	srv, client := startGRPC(t, nil, checks)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	assert.True(t, srv.UpdateHealth(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	failing.Store(true)
	assert.False(t, srv.UpdateHealth(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown.Service"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCHealth_RateLimited(t *testing.T) {
	logger := zerolog.Nop()
	limiter := NewRateLimiter(config.APIRateLimitConfig{Enabled: true, Requests: 1, Window: 60}, repository.NewMemoryRateLimitStore(), &logger)
	_, client := startGRPC(t, limiter, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestMonitorHealthStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	srv, err := NewGRPCServer(config.APIConfig{}, nil, nil, &logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.MonitorHealth(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("MonitorHealth did not return after cancel")
	}
}

func TestPeerKeyWithoutPeer(t *testing.T) {
	assert.Equal(t, clientKeyUnknown, peerKey(context.Background()))
	assert.NotEmpty(t, requestIDFromMetadata(context.Background()))
}
