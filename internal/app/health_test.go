package app

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealth_Endpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.call(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "healthy", resp.body["status"])
	services := resp.body["services"].(map[string]interface{})
	assert.Contains(t, services, "database")
	assert.Contains(t, services, "redis")
}

func TestHealth_RedisDown(t *testing.T) {
	env := newTestEnv(t)
	env.redis.Close()

	status := env.server.Health.CheckHealth(context.Background())
	assert.False(t, status.Healthy())
	assert.Equal(t, "unhealthy", status.Services["redis"].Status)
	assert.Equal(t, "healthy", status.Services["database"].Status)

	resp := env.call(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
}

func TestHealth_GRPCStatusFollowsChecks(t *testing.T) {
	env := newTestEnv(t)
	srv := health.NewServer()

	env.server.Health.UpdateServingStatus(context.Background(), srv)
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	env.redis.Close()
	env.server.Health.UpdateServingStatus(context.Background(), srv)
	resp, err = srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestHealth_DetailedStats(t *testing.T) {
	env := newTestEnv(t)

	stats := env.server.Health.GetDetailedStats()
	assert.Contains(t, stats, "database")
	assert.Contains(t, stats, "redis")
	assert.Equal(t, uint64(0), stats["tasks_dropped"])
}
