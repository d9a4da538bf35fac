package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"venuebook/internal/config"
	"venuebook/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockTimeout means the key stayed held for the whole wait budget.
	ErrLockTimeout = errors.New("lock wait exceeded")
	// ErrLockNotHeld is returned by a release whose lease already expired or was released.
	ErrLockNotHeld = errors.New("lock not held")
)

// Deletes the key only if it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient builds a client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// RedisLocker is a single-instance Redis lease: SET NX PX with a random token.
type RedisLocker struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:     client,
		prefix:     "venuebook:lock:",
		ttl:        ttl,
		retryDelay: 10 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (domain.ReleaseFunc, error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}
			return nil, fmt.Errorf("failed to acquire redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) domain.ReleaseFunc {
	return func(ctx context.Context) error {
		deleted, err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release redis lock: %w", err)
		}
		if deleted == 0 {
			return ErrLockNotHeld
		}
		return nil
	}
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client if there is one.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
