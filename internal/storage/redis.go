package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eugenenazirov/atlas-packer/internal/atlas"
)

// RedisStorage stores atlases as JSON documents so several service instances
// can share them. Keys are <prefix>atlas:<id>; the set <prefix>atlases
// indexes every stored ID.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStorage wraps client. A zero ttl keeps atlases until deleted.
func NewRedisStorage(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStorage) atlasKey(id string) string {
	return s.prefix + "atlas:" + id
}

func (s *RedisStorage) indexKey() string {
	return s.prefix + "atlases"
}

// Save writes a and registers it in the index.
func (s *RedisStorage) Save(ctx context.Context, a atlas.Atlas) error {
	if a.ID == "" {
		return ErrInvalidAtlas
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal atlas: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.atlasKey(a.ID), data, s.ttl)
		pipe.SAdd(ctx, s.indexKey(), a.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save atlas %s: %w", a.ID, err)
	}
	return nil
}

// Get loads the atlas stored under id.
func (s *RedisStorage) Get(ctx context.Context, id string) (atlas.Atlas, error) {
	data, err := s.client.Get(ctx, s.atlasKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return atlas.Atlas{}, ErrNotFound
	}
	if err != nil {
		return atlas.Atlas{}, fmt.Errorf("get atlas %s: %w", id, err)
	}

	var a atlas.Atlas
	if err := json.Unmarshal(data, &a); err != nil {
		return atlas.Atlas{}, fmt.Errorf("unmarshal atlas %s: %w", id, err)
	}
	return a, nil
}

// List returns all indexed atlases, oldest first. Index entries whose
// documents have expired are pruned.
func (s *RedisStorage) List(ctx context.Context) ([]atlas.Atlas, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list atlas ids: %w", err)
	}
	if len(ids) == 0 {
		return []atlas.Atlas{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.atlasKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load atlases: %w", err)
	}

	out := make([]atlas.Atlas, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var a atlas.Atlas
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("unmarshal atlas %s: %w", ids[i], err)
		}
		out = append(out, a)
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune atlas index: %w", err)
		}
	}

	sortAtlases(out)
	return out, nil
}

// Delete removes the atlas stored under id.
func (s *RedisStorage) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.atlasKey(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete atlas %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
