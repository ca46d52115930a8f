package keystore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

type pair struct{ user, recipe string }

type outcomeKey struct{ user, recipe, key string }

// MemoryStore keeps guards and outcomes in process memory. Outcomes are kept
// for the lifetime of the process. Use it for single-instance deployments
// and tests.
type MemoryStore struct {
	mu       sync.Mutex
	inflight map[pair]string // pair -> owner token
	outcomes map[outcomeKey][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		inflight: make(map[pair]string),
		outcomes: make(map[outcomeKey][]byte),
	}
}

func (s *MemoryStore) BeginInFlight(_ context.Context, userID, recipeID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := pair{userID, recipeID}
	if _, busy := s.inflight[p]; busy {
		return "", false, nil
	}
	token := uuid.NewString()
	s.inflight[p] = token
	return token, true, nil
}

func (s *MemoryStore) EndInFlight(_ context.Context, userID, recipeID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := pair{userID, recipeID}
	if s.inflight[p] == token {
		delete(s.inflight, p)
	}
	return nil
}

// InFlight reports whether the pair is currently marked.
func (s *MemoryStore) InFlight(userID, recipeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[pair{userID, recipeID}]
	return ok
}

func (s *MemoryStore) Lookup(_ context.Context, userID, recipeID, key string) (*domain.Outcome, error) {
	if key == "" {
		return nil, nil
	}
	s.mu.Lock()
	raw, ok := s.outcomes[outcomeKey{userID, recipeID, key}]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeOutcome(raw)
}

func (s *MemoryStore) Record(_ context.Context, userID, recipeID, key string, o domain.Outcome) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := outcomeKey{userID, recipeID, key}
	if _, exists := s.outcomes[k]; !exists {
		s.outcomes[k] = raw
	}
	return nil
}

func decodeOutcome(raw []byte) (*domain.Outcome, error) {
	var o domain.Outcome
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
