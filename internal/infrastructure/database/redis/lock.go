package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

type LockOption func(*lockConfig)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

func WithRetryDelay(delay time.Duration) LockOption {
	return func(c *lockConfig) { c.retryDelay = delay }
}

func WithRetryCount(count int) LockOption {
	return func(c *lockConfig) { c.retryCount = count }
}

type lockConfig struct {
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Mutex is a SET NX based lock shared by every process using the same
// Redis. Each Acquire takes a fresh token, so one Mutex may be reused.
type Mutex struct {
	client *Client
	key    string
	cfg    lockConfig
	logger logging.Logger
}

// NewMutex creates a mutex stored at "<prefix>lock:<name>".
func NewMutex(client *Client, name string, log logging.Logger, opts ...LockOption) *Mutex {
	cfg := lockConfig{
		ttl:        10 * time.Second,
		retryDelay: 50 * time.Millisecond,
		retryCount: 100,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Mutex{client: client, key: client.Key("lock:" + name), cfg: cfg, logger: log}
}

// Acquire blocks until the lock is held, the retries run out or ctx ends.
// The returned release func must be called exactly once.
func (m *Mutex) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.New().String()
	for i := 0; i < m.cfg.retryCount; i++ {
		ok, err := m.client.SetNX(ctx, m.key, token, m.cfg.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
		}
		if ok {
			return func(releaseCtx context.Context) error { return m.release(releaseCtx, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.cfg.retryDelay):
		}
	}
	m.logger.Warn("lock contention, giving up", logging.String("key", m.key), logging.Int("attempts", m.cfg.retryCount))
	return nil, ErrLockNotAcquired
}

func (m *Mutex) release(ctx context.Context, token string) error {
	res, err := unlockScript.Run(ctx, m.client.GetUnderlyingClient(), []string{m.key}, token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}
