package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

const (
	keyInFlight = "adapt:inflight:%s:%s"
	keyOutcome  = "adapt:outcome:%s:%s:%s"
)

// releaseGuard deletes KEYS[1] only while it still holds the caller's token.
var releaseGuard = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares guards and outcomes across instances through Redis.
// GuardTTL is a safety expiry on the guard key so a crashed process cannot
// block a recipe forever; it must exceed the longest generation call.
type RedisStore struct {
	client   *redis.Client
	TTL      time.Duration
	GuardTTL time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl, guardTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, TTL: ttl, GuardTTL: guardTTL}
}

// NewRedisClient parses a redis:// URL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) BeginInFlight(ctx context.Context, userID, recipeID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, fmt.Sprintf(keyInFlight, userID, recipeID), token, s.GuardTTL).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (s *RedisStore) EndInFlight(ctx context.Context, userID, recipeID, token string) error {
	return releaseGuard.Run(ctx, s.client, []string{fmt.Sprintf(keyInFlight, userID, recipeID)}, token).Err()
}

func (s *RedisStore) Lookup(ctx context.Context, userID, recipeID, key string) (*domain.Outcome, error) {
	if key == "" {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, fmt.Sprintf(keyOutcome, userID, recipeID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeOutcome(raw)
}

func (s *RedisStore) Record(ctx context.Context, userID, recipeID, key string, o domain.Outcome) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	// NX keeps the first outcome immutable.
	return s.client.SetNX(ctx, fmt.Sprintf(keyOutcome, userID, recipeID, key), raw, s.TTL).Err()
}
