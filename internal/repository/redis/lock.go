package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	redisx "github.com/pawcall/pawcall/internal/redis"
)

// SweepLock caps the expiry sweep to a single instance cluster-wide. The key
// carries a TTL so a crashed sweeper cannot wedge the lock forever; Release
// only deletes the key when this holder still owns it.
type SweepLock struct {
	rdb   *redis.Client
	key   string
	token string
}

func NewSweepLock(rdb *redis.Client) *SweepLock {
	return &SweepLock{
		rdb:   rdb,
		key:   redisx.KeySweepLock(),
		token: randomHex(16),
	}
}

func (l *SweepLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.token, ttl).Result()
}

const luaReleaseIfOwner = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

func (l *SweepLock) Release(ctx context.Context) error {
	return l.rdb.Eval(ctx, luaReleaseIfOwner, []string{l.key}, l.token).Err()
}
