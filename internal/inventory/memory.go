package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tacklebase.app/internal/approval"
)

// MemoryStore keeps products in memory for tests and local development.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[string]*Product
	bySKU map[string]string
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*Product),
		bySKU: make(map[string]string),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.bySKU[p.SKU]; ok {
		return ErrAlreadyExists
	}
	cp := *p
	s.byID[p.ID] = &cp
	s.bySKU[p.SKU] = p.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Product, 0, len(s.byID))
	for _, p := range s.byID {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *MemoryStore) AdjustStock(ctx context.Context, exec approval.Execer, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if p.StockQty+delta < 0 {
		return ErrInsufficientStock
	}
	p.StockQty += delta
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.bySKU, p.SKU)
	delete(s.byID, id)
	return nil
}
