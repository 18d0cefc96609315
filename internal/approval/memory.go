package approval

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps audit entries in memory for tests and local
// development. One mutex serializes all state transitions, so
// check-then-create and resolve are atomic.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Create(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.Status == StatusPending &&
			existing.Target == e.Target &&
			existing.MutationKey == e.MutationKey {
			return ErrConflict
		}
	}
	cp := *e
	s.entries[e.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, status Status) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if status != "" && e.Status != status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Approve(ctx context.Context, id string, approver IdentityRef, resolvedAt time.Time, apply ApplyFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != StatusPending {
		return ErrInvalidState
	}
	// Apply first: if the mutation fails the entry stays pending, matching
	// the all-or-nothing transactional behavior of the SQL store.
	if err := apply(ctx, nil); err != nil {
		return err
	}
	e.Status = StatusApproved
	e.Approver = &approver
	at := resolvedAt
	e.ResolvedAt = &at
	return nil
}

func (s *MemoryStore) Reject(ctx context.Context, id string, approver IdentityRef, reason string, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != StatusPending {
		return ErrInvalidState
	}
	e.Status = StatusRejected
	e.Approver = &approver
	e.Reason = &reason
	at := resolvedAt
	e.ResolvedAt = &at
	return nil
}

func (s *MemoryStore) PendingForTarget(ctx context.Context, target Target) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Status == StatusPending && e.Target == target {
			return true, nil
		}
	}
	return false, nil
}
