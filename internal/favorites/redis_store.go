// internal/favorites/redis_store.go
package favorites

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lanlobby/lanlobby/internal/identity"
)

const (
	favoritesKey = "serverbrowser:favorites"
	historyKey   = "serverbrowser:history"
)

// RedisStore keeps the lists in Redis, for installs that want the browser
// lists shared across machines. Same contract as FileStore.
type RedisStore struct {
	rdb *redis.Client
}

// ConnectRedis initializes a RedisStore from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() (*RedisStore, error) {
	addr := identity.GetEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := identity.GetEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) key(list List) string {
	if list == History {
		return historyKey
	}
	return favoritesKey
}

// Count returns the list length.
func (s *RedisStore) Count(ctx context.Context, list List) (int, error) {
	n, err := s.rdb.LLen(ctx, s.key(list)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to LLEN '%s': %w", s.key(list), err)
	}
	return int(n), nil
}

// Get returns the record at position i.
func (s *RedisStore) Get(ctx context.Context, list List, i int) (Record, bool, error) {
	val, err := s.rdb.LIndex(ctx, s.key(list), int64(i)).Result()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to LINDEX '%s': %w", s.key(list), err)
	}
	r, err := ParseRecord(val)
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

// Add pushes the record unless present, returning the resulting count.
func (s *RedisStore) Add(ctx context.Context, list List, r Record) (int, error) {
	key := s.key(list)
	pos, err := s.rdb.LPos(ctx, key, r.String(), redis.LPosArgs{}).Result()
	if err == nil && pos >= 0 {
		return s.Count(ctx, list)
	}
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("failed to LPOS '%s': %w", key, err)
	}
	n, err := s.rdb.RPush(ctx, key, r.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to RPUSH to '%s': %w", key, err)
	}
	return int(n), nil
}

// Remove deletes one matching record; returns whether one was removed.
func (s *RedisStore) Remove(ctx context.Context, list List, r Record) (bool, error) {
	n, err := s.rdb.LRem(ctx, s.key(list), 1, r.String()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to LREM from '%s': %w", s.key(list), err)
	}
	return n > 0, nil
}
