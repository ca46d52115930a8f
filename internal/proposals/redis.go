package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

const keyProposal = "adapt:proposal:%s"

// RedisStore keeps proposals as JSON strings with a TTL. Take uses GETDEL so
// two concurrent takers cannot both receive the value.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, p domain.AdaptationProposal) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, fmt.Sprintf(keyProposal, p.LogID), raw, s.ttl).Err()
}

func (s *RedisStore) Take(ctx context.Context, logID string) (*domain.AdaptationProposal, error) {
	raw, err := s.client.GetDel(ctx, fmt.Sprintf(keyProposal, logID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p domain.AdaptationProposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
