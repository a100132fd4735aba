package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
)

// RedisGuard layers a short-lived SETNX lock in front of another record
// store. It narrows the window where two concurrent runs race on the same
// canonical key between check and publish; the Postgres reservation stays
// the source of truth, so a redis outage degrades to the plain path
// instead of failing the run.
type RedisGuard struct {
	inner  ports.RecordStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.RecordStore = (*RedisGuard)(nil)

// NewRedisGuard wraps inner with a reservation lock of the given TTL.
func NewRedisGuard(inner ports.RecordStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisGuard{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (g *RedisGuard) lockKey(key string) string {
	return "articleforge:reserve:" + key
}

// Reserve claims the redis lock first; a lost lock is reported as a
// duplicate without touching Postgres.
func (g *RedisGuard) Reserve(ctx context.Context, key, runID string) (bool, *domain.DedupRecord, error) {
	acquired, err := g.client.SetNX(ctx, g.lockKey(key), runID, g.ttl).Result()
	if err != nil {
		g.warn("redis reserve degraded", key, err)
		return g.inner.Reserve(ctx, key, runID)
	}
	if !acquired {
		holder, err := g.client.Get(ctx, g.lockKey(key)).Result()
		if err == nil && holder == runID {
			// Re-entrant within the same run; fall through to Postgres.
			return g.inner.Reserve(ctx, key, runID)
		}
		existing, lookupErr := g.inner.CheckDuplicate(ctx, key)
		if lookupErr != nil {
			return false, nil, lookupErr
		}
		return false, existing, nil
	}

	ok, existing, err := g.inner.Reserve(ctx, key, runID)
	if err != nil || !ok {
		g.unlock(ctx, key)
	}
	return ok, existing, err
}

func (g *RedisGuard) CheckDuplicate(ctx context.Context, key string) (*domain.DedupRecord, error) {
	return g.inner.CheckDuplicate(ctx, key)
}

func (g *RedisGuard) Complete(ctx context.Context, key, publishRef string) error {
	if err := g.inner.Complete(ctx, key, publishRef); err != nil {
		return err
	}
	g.unlock(ctx, key)
	return nil
}

func (g *RedisGuard) Release(ctx context.Context, key, runID string) error {
	err := g.inner.Release(ctx, key, runID)
	g.unlock(ctx, key)
	return err
}

func (g *RedisGuard) Reset(ctx context.Context, key string) error {
	err := g.inner.Reset(ctx, key)
	g.unlock(ctx, key)
	return err
}

func (g *RedisGuard) unlock(ctx context.Context, key string) {
	if err := g.client.Del(ctx, g.lockKey(key)).Err(); err != nil {
		g.warn("redis unlock failed", key, err)
	}
}

func (g *RedisGuard) warn(msg, key string, err error) {
	if g.logger != nil {
		g.logger.Warn(msg, "key", key, "error", fmt.Sprint(err))
	}
}
