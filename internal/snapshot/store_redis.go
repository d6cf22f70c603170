package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "conclave/internal/platform/redis"
	"conclave/pkg/domain"
	"conclave/pkg/platform/sentinel"
)

const redisKeyPrefix = "snapshot:"

// RedisStore keeps snapshots in redis with per-key TTL. Selected when a redis
// URL is configured; expiry is delegated to redis, so the size cap does not
// apply and PruneExpired is a no-op.
type RedisStore struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewRedisStore(client *platformredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+snap.MessageID.String(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id domain.MessageID) (Snapshot, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, id domain.MessageID) error {
	deleted, err := s.client.Del(ctx, redisKeyPrefix+id.String()).Result()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PruneExpired is a no-op: redis expires keys itself.
func (s *RedisStore) PruneExpired(context.Context) (int, error) {
	return 0, nil
}
