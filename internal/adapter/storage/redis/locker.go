package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when this holder still owns it, so a
// holder that outlived its TTL cannot release a successor's lock.
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker is the cross-process advisory lock: SET NX PX with a retry loop.
// Lock names are hashed so arbitrary idempotency keys stay within key
// length limits.
type Locker struct {
	client *goredis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewLocker creates a locker. ttl bounds how long a crashed holder can
// block others; retry is the polling interval while waiting.
func NewLocker(client *goredis.Client, ttl, retry time.Duration) *Locker {
	return &Locker{
		client: client,
		ttl:    ttl,
		retry:  retry,
		prefix: "lock:",
	}
}

// WithLock runs fn while holding the named lock. Acquisition polls until
// the lock is free or ctx is done.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	sum := sha256.Sum256([]byte(name))
	key := l.prefix + hex.EncodeToString(sum[:16])
	holder := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, holder, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{key}, holder).Result()
	}()
	return fn(ctx)
}
