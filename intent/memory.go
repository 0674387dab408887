package intent

import (
	"context"
	"sync"

	"checkout-svc/models"
)

// MemoryStore is the in-memory Store used by tests and local runs without
// Redis.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]models.PaymentIntent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots: make(map[string]models.PaymentIntent),
	}
}

func (s *MemoryStore) Save(ctx context.Context, key, orderID, authSnapshot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key] = newIntent(orderID, authSnapshot)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, key string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.slots[key]
	if !ok {
		return nil, nil
	}
	return &in, nil
}

func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, key)
	return nil
}

func (s *MemoryStore) RestoreAuthIfDropped(ctx context.Context, key, currentAuth string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.slots[key]
	if !ok || in.AuthSnapshot == "" {
		return currentAuth, false, nil
	}

	snapshot := in.AuthSnapshot
	in.AuthSnapshot = ""
	s.slots[key] = in

	if currentAuth != "" {
		return currentAuth, false, nil
	}
	return snapshot, true, nil
}
