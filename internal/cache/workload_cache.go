// Package cache provides an injected, TTL-bound cache for workload
// snapshots read by the assignment engine. It is advisory: every error
// degrades to a cache miss so scoring falls back to the repository.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/appeal-service/internal/domain"
)

const availableKey = "workloads:available"

// WorkloadCache caches the available-operator snapshot.
type WorkloadCache interface {
	GetAvailable(ctx context.Context) ([]domain.OperatorWorkload, bool)
	SetAvailable(ctx context.Context, workloads []domain.OperatorWorkload)
	Invalidate(ctx context.Context)
}

type redisWorkloadCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisWorkloadCache builds a redis-backed snapshot cache.
func NewRedisWorkloadCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) WorkloadCache {
	return &redisWorkloadCache{client: client, ttl: ttl, logger: logger}
}

func (c *redisWorkloadCache) GetAvailable(ctx context.Context) ([]domain.OperatorWorkload, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, availableKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("workload cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var workloads []domain.OperatorWorkload
	if err := json.Unmarshal(raw, &workloads); err != nil {
		c.logger.Warn("workload cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return workloads, true
}

func (c *redisWorkloadCache) SetAvailable(ctx context.Context, workloads []domain.OperatorWorkload) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(workloads)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, availableKey, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("workload cache write failed", zap.Error(err))
	}
}

func (c *redisWorkloadCache) Invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, availableKey).Err(); err != nil {
		c.logger.Debug("workload cache invalidate failed", zap.Error(err))
	}
}
