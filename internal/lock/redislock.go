// Package lock provides a Redis-backed mutex used to serialise concurrent
// mutations of the same cart.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// release only deletes the key when the token still matches, so an expired
// lock re-acquired by another holder is never released by the old one.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`

// Locker acquires per-key mutexes via SET NX.
type Locker struct {
	Client       *redis.Client
	TTL          time.Duration
	RetryBackoff time.Duration
}

func (l *Locker) ttl() time.Duration {
	if l.TTL > 0 {
		return l.TTL
	}
	return 10 * time.Second
}

func (l *Locker) backoff() time.Duration {
	if l.RetryBackoff > 0 {
		return l.RetryBackoff
	}
	return 25 * time.Millisecond
}

// WithLock runs fn while holding the lock for key, polling until the lock is
// acquired or ctx is cancelled. The lock is released when fn returns.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l == nil || l.Client == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback required")
	}

	token := uuid.NewString()
	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.ttl()).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.backoff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Client.Eval(releaseCtx, releaseScript, []string{key}, token).Err()
	}()
	return fn(ctx)
}
