// Package approval implements the audit/approval workflow that gates
// sensitive mutations. A proposal captures the intended change as a durable
// command object; the underlying resource is only mutated when a privileged
// reviewer approves the entry, atomically with the status transition.
package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"tacklebase.app/internal/auth"
)

// Status is the lifecycle state of an audit entry. Entries start pending
// and transition exactly once to approved or rejected; both are absorbing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	ErrNotFound     = errors.New("approval: entry not found")
	ErrConflict     = errors.New("approval: a pending proposal already exists for this target")
	ErrInvalidState = errors.New("approval: entry already resolved")
	ErrValidation   = errors.New("approval: invalid input")
	ErrSelfApproval = errors.New("approval: requester may not resolve their own proposal")
)

// Target references the resource a proposed mutation applies to.
type Target struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// IdentityRef is a durable snapshot of a principal, captured at proposal or
// resolution time so the entry stays meaningful even if the account changes.
type IdentityRef struct {
	Role  auth.Role `json:"role"`
	ID    string    `json:"id"`
	Email string    `json:"email"`
}

// RefOf snapshots a verified identity.
func RefOf(id auth.Identity) IdentityRef {
	return IdentityRef{Role: id.IdentityRole(), ID: id.IdentityID(), Email: id.IdentityEmail()}
}

// Entry is one pending or resolved sensitive mutation. The payload is the
// deferred command: it survives process restarts between proposal and
// resolution.
type Entry struct {
	ID          string          `json:"id"`
	Target      Target          `json:"target"`
	MutationKey string          `json:"mutation_key"`
	Payload     json.RawMessage `json:"payload"`
	Requester   IdentityRef     `json:"requester"`
	Approver    *IdentityRef    `json:"approver,omitempty"`
	Status      Status          `json:"status"`
	Reason      *string         `json:"reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}

// Execer is the subset of database/sql a deferred mutation needs. Both
// *sql.Tx and *sql.DB satisfy it; the in-memory store passes nil.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ApplyFunc executes the deferred mutation inside the same transaction that
// flips the entry to approved. If it fails, neither commits.
type ApplyFunc func(ctx context.Context, exec Execer) error

// Applier resolves a durable payload into the actual mutation for one
// mutation key.
type Applier interface {
	Apply(ctx context.Context, exec Execer, target Target, payload json.RawMessage) error
}

// Store persists audit entries. Implementations guarantee the
// check-then-create for the pending-uniqueness invariant is atomic, and that
// state transitions against the same entry serialize.
type Store interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, status Status) ([]*Entry, error)
	// Approve transitions pending->approved and runs apply atomically.
	Approve(ctx context.Context, id string, approver IdentityRef, resolvedAt time.Time, apply ApplyFunc) error
	// Reject transitions pending->rejected; no mutation runs.
	Reject(ctx context.Context, id string, approver IdentityRef, reason string, resolvedAt time.Time) error
	// PendingForTarget reports whether any pending entry references target.
	PendingForTarget(ctx context.Context, target Target) (bool, error)
}
