//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/emilythestrangee/qa-forum/backend/internal/config"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
)

func setupRedis(t *testing.T) *StatsStorage {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	addr, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewClient(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewStatsStorage(client, time.Minute)
}

func TestStatsStorage(t *testing.T) {
	storage := setupRedis(t)
	ctx := context.Background()

	_, ok, err := storage.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	gen, err := storage.Generation(ctx)
	require.NoError(t, err)
	want := &models.Stats{Total: 4, Resolved: 1, Resolution: 25, ActiveTags: 2}
	require.NoError(t, storage.Set(ctx, want, gen))

	got, ok, err := storage.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStatsStorageDropsStaleSet(t *testing.T) {
	storage := setupRedis(t)
	ctx := context.Background()

	gen, err := storage.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, storage.Invalidate(ctx))

	require.NoError(t, storage.Set(ctx, &models.Stats{Total: 1}, gen))
	_, ok, err := storage.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "stats older than the last invalidate are not stored")

	gen, err = storage.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}
