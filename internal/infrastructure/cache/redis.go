package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
)

// RedisConfig holds connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// keyStore is the part of redis.Cmdable the deduplicator needs
type keyStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisDeduplicator remembers handled event IDs for a bounded time
type RedisDeduplicator struct {
	client keyStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisDeduplicator creates a deduplicator storing keys as prefix+eventID
func NewRedisDeduplicator(client keyStore, prefix string, ttl time.Duration, logger *zap.Logger) *RedisDeduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduplicator{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// MarkSeen returns true the first time eventID is offered within the TTL
func (d *RedisDeduplicator) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	first, err := d.client.SetNX(ctx, d.prefix+eventID, 1, d.ttl).Result()
	if err != nil {
		d.logger.Error("Failed to record event id", zap.String("event_id", eventID), zap.Error(err))
		return false, fmt.Errorf("failed to record event id: %w", err)
	}
	return first, nil
}

// Release deletes the key for eventID
func (d *RedisDeduplicator) Release(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, d.prefix+eventID).Err(); err != nil {
		d.logger.Error("Failed to release event id", zap.String("event_id", eventID), zap.Error(err))
		return fmt.Errorf("failed to release event id: %w", err)
	}
	return nil
}

var _ port.EventDeduplicator = (*RedisDeduplicator)(nil)
