package lanes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dErrors "regionsync/pkg/domain-errors"
)

const (
	lockKeyPrefix    = "regionsync:lane:"
	pendingKeyPrefix = "regionsync:pending:"
)

// releaseScript deletes the lock only if it still holds our token, so a lock
// that expired and was taken over is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// decrScript decrements and removes the counter once it reaches zero.
var decrScript = redis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
	redis.call("DEL", KEYS[1])
	return 0
end
return n
`)

// RedisLocker is a cross-process Locker using SET NX PX with token-checked release.
type RedisLocker struct {
	client      *redis.Client
	ttl         time.Duration
	maxInterval time.Duration
}

type RedisLockerOption func(*RedisLocker)

// WithLockTTL bounds how long a crashed holder can block a lane.
func WithLockTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithMaxPollInterval caps the backoff between acquisition attempts.
func WithMaxPollInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.maxInterval = d
		}
	}
}

func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:      client,
		ttl:         30 * time.Second,
		maxInterval: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = l.maxInterval
	policy.MaxElapsedTime = 0

	op := func() error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("acquire lane %s: %w", key, err))
		}
		if !ok {
			return ErrLockTimeout
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, ErrLockTimeout) || ctx.Err() != nil {
			return nil, dErrors.Wrap(ErrLockTimeout, dErrors.CodeTimeout, "lane "+key)
		}
		return nil, err
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			return fmt.Errorf("release lane %s: %w", key, err)
		}
		return nil
	}, nil
}

// RedisPending is a cross-process PendingTracker over INCR/DECR counters.
// Counters expire so a crashed process cannot block deletes forever.
type RedisPending struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPending(client *redis.Client, ttl time.Duration) *RedisPending {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisPending{client: client, ttl: ttl}
}

func (p *RedisPending) Add(ctx context.Context, key string) error {
	redisKey := pendingKeyPrefix + key
	pipe := p.client.TxPipeline()
	pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark pending %s: %w", key, err)
	}
	return nil
}

func (p *RedisPending) Done(ctx context.Context, key string) error {
	if err := decrScript.Run(ctx, p.client, []string{pendingKeyPrefix + key}).Err(); err != nil {
		return fmt.Errorf("clear pending %s: %w", key, err)
	}
	return nil
}

func (p *RedisPending) Pending(ctx context.Context, key string) (int64, error) {
	n, err := p.client.Get(ctx, pendingKeyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pending %s: %w", key, err)
	}
	return n, nil
}
