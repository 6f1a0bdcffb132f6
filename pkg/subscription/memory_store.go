package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]record)}
}

func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	r, ok := s.subs[userID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return r.toSubscription()
}

func (s *MemoryStore) Save(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.UserID == uuid.Nil {
		return ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Storing the flat record decouples the map from the caller's pointer.
	s.subs[sub.UserID] = toRecord(sub)
	return nil
}
