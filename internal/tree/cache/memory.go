// Package cache provides tree snapshot caches: in-process for single
// instances, Redis for shared deployments. Both are invalidated by
// mutation services; the TTL is only a backstop.
package cache

import (
	"context"
	"sync"
	"time"

	"lineage/internal/tree"
)

type memoryEntry struct {
	tree     *tree.Tree
	storedAt time.Time
}

// Memory is an in-process tree cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{entries: make(map[string]memoryEntry), ttl: ttl}
}

func (c *Memory) Get(_ context.Context, chartID string) (*tree.Tree, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[chartID]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		return nil, false
	}
	return entry.tree, true
}

func (c *Memory) Set(_ context.Context, chartID string, t *tree.Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[chartID] = memoryEntry{tree: t, storedAt: time.Now()}
}

func (c *Memory) Invalidate(_ context.Context, chartID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, chartID)
}
