package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a read-through cache for list-style queries (channel lists
// with unread counts, notification lists). Values are JSON blobs with a
// bounded TTL; invalidation is by key prefix and runs synchronously
// with the mutation that outdates the data.
type Cache struct {
	cli *redis.Client
	ttl time.Duration
}

// Connect connects to the Redis server and pings it to ensure the
// connection is working.
func Connect(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{cli: cli, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.cli.Close()
}

// GetOrCompute returns the cached value under key, or runs compute and
// stores its result. A failing cache read falls through to compute; a
// failing cache write does not fail the call.
func (c *Cache) GetOrCompute(ctx context.Context, key string, dst any, compute func(context.Context) (any, error)) error {
	raw, err := c.cli.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, dst)
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("cache get failed", "key", key, "err", err)
	}

	v, err := compute(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.cli.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "err", err)
	}
	return json.Unmarshal(data, dst)
}

// Invalidate removes every key under the given prefix. It must be
// called before the triggering mutation reports success, so readers
// never observe a stale list after a confirmed write.
func (c *Cache) Invalidate(ctx context.Context, prefix string) error {
	var cursor uint64
	pattern := prefix + "*"
	for {
		keys, next, err := c.cli.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.cli.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

const namespace = "msg"

// Key builds a cache key from the namespace convention
// msg:{tenant}:{user}:{kind}[:{filter...}].
func Key(tenantID, userID int64, kind string, filter ...string) string {
	parts := append([]string{namespace,
		fmt.Sprintf("%d", tenantID),
		fmt.Sprintf("%d", userID),
		kind,
	}, filter...)
	return strings.Join(parts, ":")
}

// UserPrefix covers every cached list for one user in one tenant.
func UserPrefix(tenantID, userID int64) string {
	return fmt.Sprintf("%s:%d:%d:", namespace, tenantID, userID)
}

// KindPrefix covers one kind of cached list for one user.
func KindPrefix(tenantID, userID int64, kind string) string {
	return fmt.Sprintf("%s:%d:%d:%s", namespace, tenantID, userID, kind)
}
