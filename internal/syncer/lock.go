package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLocked is returned when another instance holds a target's lock
var ErrLocked = errors.New("sync already running on another instance")

// Locker guards a target across service instances
type Locker interface {
	// Acquire returns a release func, or ErrLocked when the key is held
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// releaseScript deletes the key only while it still holds our token
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLocker implements Locker with SET NX and a compare-and-delete release
type RedisLocker struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisLocker connects to the given redis URL
func NewRedisLocker(ctx context.Context, url, prefix string, logger zerolog.Logger) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Str("redis_addr", opts.Addr).Msg("Connected to Redis for sync locks")
	return &RedisLocker{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "sync_lock").Logger(),
	}, nil
}

// Acquire takes the lock for key until ttl elapses or release is called
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	fullKey := l.prefix + ":lock:" + key
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", fullKey, err)
		}
		return nil
	}, nil
}

// Close closes the redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// NoopLocker always grants the lock. Used when no redis URL is configured.
type NoopLocker struct{}

// Acquire always succeeds
func (NoopLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
