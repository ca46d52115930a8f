package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// GormStore is the multi-instance backend. The guard is a row in
// adaptation_inflight whose composite primary key rejects a second insert;
// outcomes live in the idempotency table until their TTL elapses.
type GormStore struct {
	DB *gorm.DB
	// TTL bounds how long an outcome can be replayed.
	TTL time.Duration
	// StaleAfter lets a new request take over a marker left behind by a
	// crashed process. Zero disables takeover.
	StaleAfter time.Duration
	Now        func() time.Time
}

// NewGormStore returns a GormStore with the given outcome TTL and stale
// marker threshold.
func NewGormStore(db *gorm.DB, ttl, staleAfter time.Duration) *GormStore {
	return &GormStore{DB: db, TTL: ttl, StaleAfter: staleAfter, Now: time.Now}
}

func (s *GormStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *GormStore) BeginInFlight(ctx context.Context, userID, recipeID string) (string, bool, error) {
	return repo.AcquireInFlight(ctx, s.DB, userID, recipeID, s.now(), s.StaleAfter)
}

func (s *GormStore) EndInFlight(ctx context.Context, userID, recipeID, token string) error {
	return repo.ReleaseInFlight(ctx, s.DB, userID, recipeID, token)
}

func (s *GormStore) Lookup(ctx context.Context, userID, recipeID, key string) (*domain.Outcome, error) {
	if key == "" {
		return nil, nil
	}
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, recipeID, key, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeOutcome(rec.Outcome)
}

func (s *GormStore) Record(ctx context.Context, userID, recipeID, key string, o domain.Outcome) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = repo.CreateIdempotency(ctx, s.DB, userID, recipeID, key, raw, s.now(), s.TTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}
