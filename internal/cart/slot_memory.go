package cart

import (
	"context"
	"sync"
)

type MemSlot struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemSlot() *MemSlot {
	return &MemSlot{m: map[string]string{}}
}

func (s *MemSlot) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemSlot) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = value
	return nil
}

func (s *MemSlot) Ping(ctx context.Context) error { return nil }
