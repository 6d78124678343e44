package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/peerlane/relay/internal/domain"
)

// releaseLua deletes the lock key only when its value still matches the
// holder's token, so an expired holder cannot release a successor's lock.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LeaderLock elects a single reconciler among relay instances sharing a
// database. It is a plain SETNX lease: whoever sets the key runs the tick,
// everyone else skips it. The lease TTL bounds the outage window if a holder
// dies without releasing.
type LeaderLock struct {
	rdb       *redis.Client
	releaseSc *redis.Script
}

// NewLeaderLock creates a LeaderLock backed by the given Client.
func NewLeaderLock(c *Client) *LeaderLock {
	return &LeaderLock{
		rdb:       c.Underlying(),
		releaseSc: redis.NewScript(releaseLua),
	}
}

func leaseKey(name string) string {
	return "relay:leader:" + name
}

// TryAcquire attempts to take the named lease for the given TTL. On success
// it returns a release function that is safe to call more than once. It
// returns domain.ErrLockHeld when another instance holds the lease.
func (l *LeaderLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	key := leaseKey(name)

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// Background context so release works even after the caller's
		// context is cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = l.releaseSc.Run(relCtx, l.rdb, []string{key}, token).Err()
	}

	return release, nil
}
