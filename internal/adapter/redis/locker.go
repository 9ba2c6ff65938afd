package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"campaign-discounts/internal/core/port"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	keyPrefix     = "discounts:lock:"
	retryInterval = 25 * time.Millisecond
)

// Locker implements port.Locker with SET NX and a token-checked release, so
// a holder whose lease expired can never delete a successor's lock.
type Locker struct {
	client goredis.UniversalClient
	script *goredis.Script
	ttl    time.Duration
	wait   time.Duration
	log    *slog.Logger
}

// NewLocker returns a locker whose leases expire after ttl and whose Lock
// gives up with port.ErrLockTimeout after wait.
func NewLocker(client goredis.UniversalClient, ttl, wait time.Duration, log *slog.Logger) *Locker {
	if log == nil {
		log = slog.Default()
	}
	return &Locker{
		client: client,
		script: goredis.NewScript(lockReleaseScript),
		ttl:    ttl,
		wait:   wait,
		log:    log,
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if l.ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	key = keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, port.ErrLockTimeout
		}

		t := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// release uses its own context: the caller's may already be canceled and the
// lock should still be dropped rather than left to expire.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.script.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.log.Warn("release lock", slog.String("key", key), slog.Any("err", err))
	}
}
