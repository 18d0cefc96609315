package approval

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tacklebase.app/internal/auth"
	"tacklebase.app/internal/ids"
	"tacklebase.app/internal/obs"
)

// Service drives the audit entry state machine. Appliers are registered per
// mutation key; approving an entry runs the matching applier in the same
// transaction as the status flip.
type Service struct {
	store    Store
	appliers map[string]Applier
	now      func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService builds the workflow service around a store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		appliers: make(map[string]Applier),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterApplier binds a mutation key to the code that executes it on
// approval. Proposals for unregistered keys are rejected up front.
func (s *Service) RegisterApplier(mutationKey string, a Applier) {
	s.appliers[mutationKey] = a
}

// Propose records a sensitive mutation as a pending audit entry. The target
// resource is NOT modified. Returns ErrConflict when a pending entry already
// exists for the same (target, mutation key).
func (s *Service) Propose(ctx context.Context, requester auth.Identity, target Target, mutationKey string, payload json.RawMessage) (*Entry, error) {
	if requester == nil {
		return nil, auth.ErrPermissionDenied
	}
	if strings.TrimSpace(target.Kind) == "" || strings.TrimSpace(target.ID) == "" {
		return nil, ErrValidation
	}
	if _, ok := s.appliers[mutationKey]; !ok {
		return nil, ErrValidation
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, ErrValidation
	}

	entry := &Entry{
		ID:          ids.New(),
		Target:      target,
		MutationKey: mutationKey,
		Payload:     payload,
		Requester:   RefOf(requester),
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Approve transitions a pending entry to approved and applies the deferred
// mutation; both commit together or not at all. The approver must hold
// approval permission and may not be the requester, even if they otherwise
// could approve.
func (s *Service) Approve(ctx context.Context, entryID string, approver auth.Identity) (*Entry, error) {
	entry, err := s.resolveChecks(ctx, entryID, approver)
	if err != nil {
		return nil, err
	}
	applier := s.appliers[entry.MutationKey]
	if applier == nil {
		return nil, ErrValidation
	}

	resolvedAt := s.now().UTC()
	ref := RefOf(approver)
	err = s.store.Approve(ctx, entryID, ref, resolvedAt, func(ctx context.Context, exec Execer) error {
		return applier.Apply(ctx, exec, entry.Target, entry.Payload)
	})
	if err != nil {
		return nil, err
	}
	obs.ObserveApprovalTransition(string(StatusApproved))

	entry.Status = StatusApproved
	entry.Approver = &ref
	entry.ResolvedAt = &resolvedAt
	return entry, nil
}

// Reject transitions a pending entry to rejected. A reason is mandatory and
// no mutation is ever applied.
func (s *Service) Reject(ctx context.Context, entryID string, approver auth.Identity, reason string) (*Entry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrValidation
	}
	entry, err := s.resolveChecks(ctx, entryID, approver)
	if err != nil {
		return nil, err
	}

	resolvedAt := s.now().UTC()
	ref := RefOf(approver)
	if err := s.store.Reject(ctx, entryID, ref, reason, resolvedAt); err != nil {
		return nil, err
	}
	obs.ObserveApprovalTransition(string(StatusRejected))

	entry.Status = StatusRejected
	entry.Approver = &ref
	entry.Reason = &reason
	entry.ResolvedAt = &resolvedAt
	return entry, nil
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, entryID string) (*Entry, error) {
	return s.store.Get(ctx, entryID)
}

// List returns entries, optionally filtered by status (empty = all).
func (s *Service) List(ctx context.Context, status Status) ([]*Entry, error) {
	return s.store.List(ctx, status)
}

// HasPending reports whether a pending entry references the target. Callers
// that delete resources use this to block deletion while proposals are
// outstanding.
func (s *Service) HasPending(ctx context.Context, target Target) (bool, error) {
	return s.store.PendingForTarget(ctx, target)
}

func (s *Service) resolveChecks(ctx context.Context, entryID string, approver auth.Identity) (*Entry, error) {
	if approver == nil || !auth.CanApprove(approver) {
		return nil, auth.ErrPermissionDenied
	}
	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Requester.ID == approver.IdentityID() {
		return nil, ErrSelfApproval
	}
	if entry.Status != StatusPending {
		return nil, ErrInvalidState
	}
	return entry, nil
}
