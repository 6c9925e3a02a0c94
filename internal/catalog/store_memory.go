package catalog

import (
	"context"
	"sort"
	"sync"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]Product
}

// NewMemStore returns a store seeded with the demo products.
func NewMemStore(products ...Product) *MemStore {
	if len(products) == 0 {
		products = demoProducts
	}

	s := &MemStore{m: make(map[string]Product, len(products))}
	for _, p := range products {
		s.m[p.ID] = p
	}
	return s
}

var demoProducts = []Product{
	{ID: "p1", Title: "Camiseta Hello World", ImageURL: "https://images.example.com/p1.png", Price: 49.90},
	{ID: "p2", Title: "Mouse sem fio", ImageURL: "https://images.example.com/p2.png", Price: 19.90},
	{ID: "p3", Title: "Caneca Go Gopher", ImageURL: "https://images.example.com/p3.png", Price: 24.50},
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	return p, ok, nil
}
