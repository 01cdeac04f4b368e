package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "credgate:session:revoked:"

// storeLatest keeps the larger of the stored and the given revocation time
// and never shortens the entry's expiry.
var storeLatest = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local ttl = tonumber(ARGV[2])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	if redis.call('PTTL', KEYS[1]) < ttl then
		redis.call('PEXPIRE', KEYS[1], ttl)
	end
	return current
end
local remaining = redis.call('PTTL', KEYS[1])
if remaining > ttl then
	ttl = remaining
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
return ARGV[1]
`)

// RedisRevocationList shares revocations across replicas.
type RedisRevocationList struct {
	client *redis.Client
}

func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func (l *RedisRevocationList) Revoke(ctx context.Context, role, subject string, revokedAt int64, ttl time.Duration) error {
	key := revocationKeyPrefix + revocationKey(role, subject)
	if err := storeLatest.Run(ctx, l.client, []string{key}, revokedAt, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("store revocation: %w", err)
	}
	return nil
}

func (l *RedisRevocationList) RevokedAt(ctx context.Context, role, subject string) (int64, bool, error) {
	raw, err := l.client.Get(ctx, revocationKeyPrefix+revocationKey(role, subject)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read revocation: %w", err)
	}
	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt revocation entry: %w", err)
	}
	return revokedAt, true, nil
}
