package store

import (
	"context"
	"sync"

	"github.com/dunamismax/stylizer/internal/domain"
)

type MemoryConversionStore struct {
	mu          sync.RWMutex
	conversions map[string]domain.Conversion
}

func NewMemoryConversionStore() *MemoryConversionStore {
	return &MemoryConversionStore{
		conversions: make(map[string]domain.Conversion),
	}
}

// Save inserts c or replaces the record with the same id.
func (s *MemoryConversionStore) Save(_ context.Context, c domain.Conversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversions[c.ID] = c
	return nil
}

func (s *MemoryConversionStore) Get(_ context.Context, id string) (domain.Conversion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversions[id]
	return c, ok, nil
}
