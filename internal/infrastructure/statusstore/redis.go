// Package statusstore opens the key-value store that holds job status records.
package statusstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

// Job ids never contain '/', so lock keys cannot collide with status keys.
const lockKeyPrefix = "migration/lock/"

// releaseLock deletes the lock only while it still holds the caller's token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps each status record under the bare job id.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, jobID string, payload []byte) error {
	if err := s.client.Set(ctx, jobID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save status %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, jobID string) ([]byte, error) {
	raw, err := s.client.Get(ctx, jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrStatusNotFound
		}
		return nil, fmt.Errorf("load status %s: %w", jobID, err)
	}
	return raw, nil
}

func (s *RedisStore) TryLock(ctx context.Context, jobID, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+jobID, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", jobID, err)
	}
	return ok, nil
}

func (s *RedisStore) Unlock(ctx context.Context, jobID, token string) error {
	released, err := releaseLock.Run(ctx, s.client, []string{lockKeyPrefix + jobID}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", jobID, err)
	}
	if released == 0 {
		logger.Debugf("lock %s no longer held by %s", jobID, token)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
