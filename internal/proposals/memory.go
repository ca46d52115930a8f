package proposals

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

type entry struct {
	p       domain.AdaptationProposal
	expires time.Time
}

// MemoryStore is a mutex-guarded map with lazy expiry. Expired entries are
// swept on Put.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

// NewMemoryStore returns a store whose entries live for ttl
// (DefaultTTL when ttl <= 0).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{m: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, p domain.AdaptationProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.m {
		if !now.Before(e.expires) {
			delete(s.m, k)
		}
	}
	s.m[p.LogID] = entry{p: p, expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, logID string) (*domain.AdaptationProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[logID]
	if !ok {
		return nil, nil
	}
	delete(s.m, logID)
	if !s.now().Before(e.expires) {
		return nil, nil
	}
	p := e.p
	return &p, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
