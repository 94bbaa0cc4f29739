// internal/infrastructure/database/redis/connection.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
)

// keyNamespace prefixes every key the storefront writes
const keyNamespace = "storefront"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, interface{}, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Del(context.Context, ...string) *redis.IntCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
}

// Client is the storefront's Redis access: the cart summary cache and the
// rate limit counters. Keys are namespaced; callers pass bare keys.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// NewConnection dials Redis and verifies connectivity
func NewConnection(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	raw := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"addr": cfg.GetRedisAddr(),
		"db":   cfg.Redis.DB,
	}).Info("redis connection established")

	return &Client{store: raw, raw: raw}, nil
}

// Close closes the connection pool
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// Health pings Redis
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.store.Ping(ctx).Err()
}

// Set stores value under key with a TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.store.Set(ctx, namespaced(key), value, ttl).Err()
}

// Get returns the value under key; redis.Nil when absent
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.store.Get(ctx, namespaced(key)).Result()
}

// Del removes keys; no keys is a no-op
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = namespaced(k)
	}
	return c.store.Del(ctx, full...).Err()
}

// Hit increments the fixed-window counter for key and returns the new count.
// The window starts at the first hit.
func (c *Client) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := namespaced(key)
	count, err := c.store.Incr(ctx, full).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.store.Expire(ctx, full, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func namespaced(key string) string {
	return keyNamespace + ":" + key
}
