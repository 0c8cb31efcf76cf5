// Package memory stores cart documents in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ cart.Storage = (*Storage)(nil)

// Storage is an in-memory cart.Storage. Documents are lost on restart.
type Storage struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{docs: make(map[string][]byte)}
}

func (s *Storage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, cart.ErrNoDocument
	}
	return append([]byte(nil), doc...), nil
}

func (s *Storage) Save(_ context.Context, key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key] = append([]byte(nil), doc...)
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }
