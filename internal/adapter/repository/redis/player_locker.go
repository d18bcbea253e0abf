package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

const defaultRetryInterval = 25 * time.Millisecond

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements usecase.Locker with SET NX PX and a token-checked release.
type Locker struct {
	client        *redis.Client
	prefix        string
	retryInterval time.Duration
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// NewLocker creates a new Locker.
func NewLocker(client *redis.Client, logger zerolog.Logger, m *metrics.Metrics) *Locker {
	return &Locker{
		client:        client,
		prefix:        "clubmarket:lock:",
		retryInterval: defaultRetryInterval,
		metrics:       m,
		logger:        logger.With().Str("component", "locker").Logger(),
	}
}

// Acquire polls until key is free or ctx ends. A held lock past ctx yields domain.ErrSettlementInFlight.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	contended := false
	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
		observe(l.metrics, "lock_acquire", err)
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.ErrSettlementInFlight
			}
			return nil, err
		}
		if ok {
			return l.releaser(fullKey, token), nil
		}

		if !contended {
			contended = true
			if l.metrics != nil {
				l.metrics.LockContention.Inc()
			}
			l.logger.Debug().Str("key", fullKey).Msg("lock held, waiting")
		}

		select {
		case <-ctx.Done():
			return nil, domain.ErrSettlementInFlight
		case <-ticker.C:
		}
	}
}

func (l *Locker) releaser(fullKey, token string) func(context.Context) error {
	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true

		n, err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Int()
		observe(l.metrics, "lock_release", err)
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if n == 0 {
			l.logger.Warn().Str("key", fullKey).Msg("lock expired before release")
		}
		return nil
	}
}
