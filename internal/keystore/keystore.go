// Package keystore tracks which (user, recipe) pairs have an adaptation in
// flight and caches the outcome produced for each idempotency key, so a
// retried request replays the original result instead of running again.
//
// Three backends implement Store:
//
//   - MemoryStore: process-local maps. Correct for a single instance only;
//     two replicas would each grant the guard.
//   - GormStore: the adaptation_inflight table (primary key insert as the
//     test-and-set) and the idempotency table with a TTL.
//   - RedisStore: SET NX for both the guard and the outcome cache.
package keystore

import (
	"context"
	"errors"
	"regexp"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// DefaultMaxKeyLen bounds client-supplied idempotency keys.
const DefaultMaxKeyLen = 200

// ErrInvalidKey is returned by ValidateKey for oversized or malformed keys.
var ErrInvalidKey = errors.New("invalid idempotency key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// ValidateKey checks a client-supplied key. An empty key means "no key" and
// is valid. Oversized keys are rejected, never truncated.
func ValidateKey(key string, maxLen int) error {
	if key == "" {
		return nil
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxKeyLen
	}
	if len(key) > maxLen || !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}
	return nil
}

// Store is the request key store consumed by the adaptation service.
type Store interface {
	// BeginInFlight atomically marks the pair as busy and returns the owner
	// token of the mark. ok is false when the pair is already marked.
	BeginInFlight(ctx context.Context, userID, recipeID string) (token string, ok bool, err error)
	// EndInFlight clears the mark if it still carries token. It must be
	// called on every exit path of a request that acquired it; a mark taken
	// over by another request is left alone.
	EndInFlight(ctx context.Context, userID, recipeID, token string) error
	// Lookup returns the recorded outcome for the key, or nil when absent.
	Lookup(ctx context.Context, userID, recipeID, key string) (*domain.Outcome, error)
	// Record stores the outcome for the key. The first recorded outcome wins;
	// later calls for the same key are no-ops.
	Record(ctx context.Context, userID, recipeID, key string, o domain.Outcome) error
}
