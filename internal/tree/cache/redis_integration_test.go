//go:build integration

package cache_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lineage/internal/tree"
	"lineage/internal/tree/cache"
	"lineage/pkg/testutil/containers"
)

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	snapshot := &tree.Tree{
		Nodes: []tree.Node{{PersonID: 1, Name: "Ada", Gender: "F"}},
		Links: []tree.Link{},
	}

	t.Run("round-trips a snapshot", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		c := cache.NewRedis(rc.Client, time.Minute, logger)

		_, ok := c.Get(ctx, "c1")
		require.False(t, ok)

		c.Set(ctx, "c1", snapshot)
		got, ok := c.Get(ctx, "c1")
		require.True(t, ok)
		assert.Equal(t, snapshot, got)
	})

	t.Run("invalidate drops the entry", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		c := cache.NewRedis(rc.Client, time.Minute, logger)

		c.Set(ctx, "c1", snapshot)
		c.Invalidate(ctx, "c1")
		_, ok := c.Get(ctx, "c1")
		assert.False(t, ok)
	})

	t.Run("entries expire by ttl", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		c := cache.NewRedis(rc.Client, 50*time.Millisecond, logger)

		c.Set(ctx, "c1", snapshot)
		assert.Eventually(t, func() bool {
			_, ok := c.Get(ctx, "c1")
			return !ok
		}, time.Second, 20*time.Millisecond)
	})

	t.Run("charts do not collide", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		c := cache.NewRedis(rc.Client, time.Minute, logger)

		c.Set(ctx, "c1", snapshot)
		_, ok := c.Get(ctx, "c2")
		assert.False(t, ok)
	})
}
