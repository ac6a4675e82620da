package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"field_inventory_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "imports:session:"
	lockKeyPrefix    = "imports:lock:"
)

// releaseScript deletes the key only when it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps import sessions and submission locks in Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Compile-time checks.
var (
	_ SessionStore = (*RedisStore)(nil)
	_ Locker       = (*RedisStore)(nil)
)

// Save writes the session as JSON, replacing any previous version.
func (s *RedisStore) Save(ctx context.Context, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal import session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save import session: %w", err)
	}
	return nil
}

// Get loads a session. Missing or expired sessions are reported as gone.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.Gone("import session expired or not found")
		}
		return nil, fmt.Errorf("get import session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode import session: %w", err)
	}
	return &session, nil
}

// Acquire takes the lease with SET NX and a random token.
func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lease if token still owns it.
func (s *RedisStore) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{lockKeyPrefix + key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// SubmitLockKey is the lease key serializing submissions per project and feature type.
func SubmitLockKey(projectID, featureTypeID uuid.UUID) string {
	return projectID.String() + ":" + featureTypeID.String()
}
