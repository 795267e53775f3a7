package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errTooManyAttempts = errors.New("twofactor: too many failed attempts")

// attemptLimiter throttles verification failures per identity using a redis
// counter with a cooldown TTL. A nil limiter or client disables throttling.
type attemptLimiter struct {
	redis       *redis.Client
	maxAttempts int
	cooldown    time.Duration
}

func newAttemptLimiter(client *redis.Client, maxAttempts int, cooldown time.Duration) *attemptLimiter {
	return &attemptLimiter{redis: client, maxAttempts: maxAttempts, cooldown: cooldown}
}

func (l *attemptLimiter) key(identityID uuid.UUID) string {
	return "2fa:attempts:" + identityID.String()
}

func (l *attemptLimiter) Check(ctx context.Context, identityID uuid.UUID) error {
	if l == nil || l.redis == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(identityID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if int(count) >= l.maxAttempts {
		return errTooManyAttempts
	}
	return nil
}

func (l *attemptLimiter) RecordFailure(ctx context.Context, identityID uuid.UUID) {
	if l == nil || l.redis == nil {
		return
	}
	count, err := l.redis.Incr(ctx, l.key(identityID)).Result()
	if err != nil {
		return
	}
	if count == 1 {
		_ = l.redis.Expire(ctx, l.key(identityID), l.cooldown).Err()
	}
}

func (l *attemptLimiter) Reset(ctx context.Context, identityID uuid.UUID) {
	if l == nil || l.redis == nil {
		return
	}
	_ = l.redis.Del(ctx, l.key(identityID)).Err()
}
