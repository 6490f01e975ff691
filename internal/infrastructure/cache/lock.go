package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another replica is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance Redis mutex built on SET NX PX
type Locker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewLocker(client *redis.Client, logger *zap.Logger) *Locker {
	return &Locker{client: client, logger: logger}
}

// Acquire takes key for ttl. A held key fails with ErrGenerationInProgress.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lockKey := LockPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		l.logger.Error("redis lock acquire failed", zap.String("key", lockKey), zap.Error(err))
		return nil, fmt.Errorf("redis lock acquire failed: %w", err)
	}
	if !ok {
		l.logger.Debug("lock held elsewhere", zap.String("key", lockKey))
		return nil, errors.ErrGenerationInProgress
	}

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Int()
		if err != nil {
			l.logger.Error("redis lock release failed", zap.String("key", lockKey), zap.Error(err))
			return fmt.Errorf("redis lock release failed: %w", err)
		}
		if n == 0 {
			l.logger.Warn("lock expired before release", zap.String("key", lockKey), zap.Duration("ttl", ttl))
		}
		return nil
	}
	return release, nil
}
