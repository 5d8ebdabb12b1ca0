package directory

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore tracks user presence as one expiring key per user.
// A user is present while their key exists; authenticated requests refresh it.
type RedisSessionStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisSessionStore) key(userID string) string {
	return s.prefix + userID
}

// Touch marks userID present for the configured TTL.
func (s *RedisSessionStore) Touch(ctx context.Context, userID string) error {
	if s.rdb == nil {
		return errors.New("directory: redis client is nil")
	}
	if userID == "" {
		return errors.New("directory: user id required")
	}
	return s.rdb.Set(ctx, s.key(userID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}

// Clear removes the user's presence, e.g. on logout.
func (s *RedisSessionStore) Clear(ctx context.Context, userID string) error {
	if s.rdb == nil {
		return errors.New("directory: redis client is nil")
	}
	return s.rdb.Del(ctx, s.key(userID)).Err()
}

func (s *RedisSessionStore) ActiveUsers(ctx context.Context, ids []string) (map[string]bool, error) {
	if s.rdb == nil {
		return nil, errors.New("directory: redis client is nil")
	}
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	for i, id := range ids {
		if cmds[i].Val() > 0 {
			out[id] = true
		}
	}
	return out, nil
}
