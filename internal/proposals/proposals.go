// Package proposals holds generated adaptation proposals between the propose
// and accept steps. Take is at-most-once: after a proposal has been taken it
// cannot be taken again, which is what prevents one proposal from being
// applied twice.
package proposals

import (
	"context"
	"time"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// DefaultTTL is how long an untaken proposal stays available.
const DefaultTTL = 15 * time.Minute

// Store is implemented by MemoryStore and RedisStore.
type Store interface {
	Put(ctx context.Context, p domain.AdaptationProposal) error
	// Take removes and returns the proposal for logID, or nil when it is
	// absent, expired, or already taken.
	Take(ctx context.Context, logID string) (*domain.AdaptationProposal, error)
}
