package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lineage/internal/tree"
)

const treeKeyPrefix = "tree:chart:"

// Redis caches assembled trees in Redis so multiple instances share one
// cache. All failures degrade to a miss; the store stays authoritative.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (c *Redis) Get(ctx context.Context, chartID string) (*tree.Tree, bool) {
	raw, err := c.client.Get(ctx, treeKeyPrefix+chartID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "tree cache read failed", "chart_id", chartID, "error", err.Error())
		return nil, false
	}
	var t tree.Tree
	if err := json.Unmarshal(raw, &t); err != nil {
		c.logger.WarnContext(ctx, "tree cache entry corrupt", "chart_id", chartID, "error", err.Error())
		return nil, false
	}
	return &t, true
}

func (c *Redis) Set(ctx context.Context, chartID string, t *tree.Tree) {
	raw, err := json.Marshal(t)
	if err != nil {
		c.logger.WarnContext(ctx, "tree cache marshal failed", "chart_id", chartID, "error", err.Error())
		return
	}
	if err := c.client.Set(ctx, treeKeyPrefix+chartID, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "tree cache write failed", "chart_id", chartID, "error", err.Error())
	}
}

func (c *Redis) Invalidate(ctx context.Context, chartID string) {
	if err := c.client.Del(ctx, treeKeyPrefix+chartID).Err(); err != nil {
		c.logger.WarnContext(ctx, "tree cache invalidation failed", "chart_id", chartID, "error", err.Error())
	}
}
