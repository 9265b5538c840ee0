package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const payoutBatchLockKey = "lock:payout-batch"

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// releaseScript deletes the lock only while it still holds the caller's token, so a run
// that outlived the TTL cannot remove the lock of the run that followed it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquirePayoutLock attempts to acquire the payout batch lock for token.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquirePayoutLock(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, payoutBatchLockKey, token, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleasePayoutLock releases the payout batch lock if token still owns it.
func (s *LockStore) ReleasePayoutLock(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, s.client, []string{payoutBatchLockKey}, token).Err()
}
