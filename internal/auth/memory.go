package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory WorkerStore for tests and local development.
// A single mutex serializes all mutations, which satisfies the per-worker
// linearizability requirement.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*Worker
	byEmail map[string]string
}

var _ WorkerStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Worker),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, w *Worker) error {
	email := strings.TrimSpace(strings.ToLower(w.Email))
	if w.ID == "" || email == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[w.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	cp := *w
	cp.Email = email
	s.byID[w.ID] = &cp
	s.byEmail[email] = w.ID
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, id string) (*Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*Worker, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Worker, 0, len(s.byID))
	for _, w := range s.byID {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	w.PasswordHash = passwordHash
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AppendLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	w.LoginHistory.Append(at)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, w.Email)
	delete(s.byID, id)
	return nil
}
