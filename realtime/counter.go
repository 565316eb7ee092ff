package realtime

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Counter tracks the number of open realtime connections. The value is
// approximate; concurrent updates are not coordinated beyond the atomic op.
type Counter interface {
	Incr(ctx context.Context) (int64, error)
	Decr(ctx context.Context) (int64, error)
	Value(ctx context.Context) (int64, error)
}

const activeKey = "eventhub:active_connections"

// RedisCounter keeps the count in Redis so several instances share it.
type RedisCounter struct {
	client *redis.Client
	key    string
}

// NewRedisCounter connects to Redis and checks the connection.
func NewRedisCounter(addr, password string, db int) (*RedisCounter, error) {
	return newRedisCounter(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// newRedisCounter takes ownership of client and closes it if Redis does not
// answer.
func newRedisCounter(client *redis.Client) (*RedisCounter, error) {
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCounter{client: client, key: activeKey}, nil
}

func (c *RedisCounter) Incr(ctx context.Context) (int64, error) {
	return c.client.Incr(ctx, c.key).Result()
}

func (c *RedisCounter) Decr(ctx context.Context) (int64, error) {
	return c.client.Decr(ctx, c.key).Result()
}

func (c *RedisCounter) Value(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, c.key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}

// MemoryCounter is the single-process fallback.
type MemoryCounter struct {
	n atomic.Int64
}

func (c *MemoryCounter) Incr(context.Context) (int64, error)  { return c.n.Add(1), nil }
func (c *MemoryCounter) Decr(context.Context) (int64, error)  { return c.n.Add(-1), nil }
func (c *MemoryCounter) Value(context.Context) (int64, error) { return c.n.Load(), nil }
