package approval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"tacklebase.app/internal/auth"
)

// fakeApplier records every application so tests can assert exactly-once
// semantics.
type fakeApplier struct {
	applied []Target
	fail    error
}

func (f *fakeApplier) Apply(ctx context.Context, exec Execer, target Target, payload json.RawMessage) error {
	if f.fail != nil {
		return f.fail
	}
	f.applied = append(f.applied, target)
	return nil
}

const testMutation = "stock.adjust"

func newTestWorkflow(t *testing.T) (*Service, *fakeApplier) {
	t.Helper()
	applier := &fakeApplier{}
	svc := NewService(NewMemoryStore())
	svc.RegisterApplier(testMutation, applier)
	return svc, applier
}

var (
	requester = auth.AdminIdentity{Subject: "adm-1", Email: "one@x.com"}
	reviewer  = auth.AdminIdentity{Subject: "adm-2", Email: "two@x.com"}
	worker    = auth.WorkerIdentity{ID: "w-1", Email: "a@x.com"}

	productP = Target{Kind: "product", ID: "p-1"}
	payload  = json.RawMessage(`{"delta":-5,"reason":"spoilage"}`)
)

func TestProposeCreatesPendingEntry(t *testing.T) {
	svc, applier := newTestWorkflow(t)

	entry, err := svc.Propose(context.Background(), requester, productP, testMutation, payload)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if entry.Status != StatusPending {
		t.Fatalf("expected pending, got %s", entry.Status)
	}
	if entry.Approver != nil || entry.ResolvedAt != nil {
		t.Fatal("fresh entry must have no approver or resolution time")
	}
	if len(applier.applied) != 0 {
		t.Fatal("proposal must not mutate the target")
	}
}

func TestProposeDuplicatePendingConflicts(t *testing.T) {
	svc, _ := newTestWorkflow(t)

	if _, err := svc.Propose(context.Background(), requester, productP, testMutation, payload); err != nil {
		t.Fatalf("first Propose: %v", err)
	}
	if _, err := svc.Propose(context.Background(), reviewer, productP, testMutation, payload); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// A different target is unaffected.
	if _, err := svc.Propose(context.Background(), requester, Target{Kind: "product", ID: "p-2"}, testMutation, payload); err != nil {
		t.Fatalf("different target: %v", err)
	}
}

func TestApproveAppliesMutationExactlyOnce(t *testing.T) {
	svc, applier := newTestWorkflow(t)

	entry, err := svc.Propose(context.Background(), requester, productP, testMutation, payload)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	resolved, err := svc.Approve(context.Background(), entry.ID, reviewer)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if resolved.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", resolved.Status)
	}
	if resolved.Approver == nil || resolved.Approver.ID != "adm-2" {
		t.Fatalf("approver not recorded: %+v", resolved.Approver)
	}
	if len(applier.applied) != 1 {
		t.Fatalf("mutation applied %d times, want exactly once", len(applier.applied))
	}

	// Terminal states are absorbing.
	if _, err := svc.Approve(context.Background(), entry.ID, reviewer); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("re-approve: expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Reject(context.Background(), entry.ID, reviewer, "late"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("reject after approve: expected ErrInvalidState, got %v", err)
	}
	if len(applier.applied) != 1 {
		t.Fatal("retries must not re-apply the mutation")
	}
}

func TestRejectNeverApplies(t *testing.T) {
	svc, applier := newTestWorkflow(t)

	entry, err := svc.Propose(context.Background(), requester, productP, testMutation, payload)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	resolved, err := svc.Reject(context.Background(), entry.ID, reviewer, "numbers do not match the count sheet")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if resolved.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", resolved.Status)
	}
	if resolved.Reason == nil || *resolved.Reason == "" {
		t.Fatal("rejection must record the reason")
	}
	if len(applier.applied) != 0 {
		t.Fatal("rejecting must not apply the mutation")
	}
	// After a rejection the target is free for a new proposal.
	if _, err := svc.Propose(context.Background(), requester, productP, testMutation, payload); err != nil {
		t.Fatalf("re-propose after rejection: %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, _ := newTestWorkflow(t)
	entry, err := svc.Propose(context.Background(), requester, productP, testMutation, payload)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := svc.Reject(context.Background(), entry.ID, reviewer, "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank reason, got %v", err)
	}
}

func TestSelfApprovalForbidden(t *testing.T) {
	svc, applier := newTestWorkflow(t)
	entry, err := svc.Propose(context.Background(), requester, productP, testMutation, payload)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	// The requester holds approval permission, but may still not approve
	// their own proposal.
	if _, err := svc.Approve(context.Background(), entry.ID, requester); !errors.Is(err, ErrSelfApproval) {
		t.Fatalf("expected ErrSelfApproval, got %v", err)
	}
	if _, err := svc.Reject(context.Background(), entry.ID, requester, "changed my mind"); !errors.Is(err, ErrSelfApproval) {
		t.Fatalf("expected ErrSelfApproval on reject, got %v", err)
	}
	if len(applier.applied) != 0 {
		t.Fatal("self-approval attempt must not apply the mutation")
	}
}

func TestApprovalPermissionRequired(t *testing.T) {
	svc, _ := newTestWorkflow(t)
	entry, err := svc.Propose(context.Background(), requester, productP, testMutation, payload)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := svc.Approve(context.Background(), entry.ID, worker); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestApproveFailedApplierKeepsEntryPending(t *testing.T) {
	applier := &fakeApplier{fail: errors.New("stock would go negative")}
	svc := NewService(NewMemoryStore())
	svc.RegisterApplier(testMutation, applier)

	entry, err := svc.Propose(context.Background(), requester, productP, testMutation, payload)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := svc.Approve(context.Background(), entry.ID, reviewer); err == nil {
		t.Fatal("expected applier failure to surface")
	}
	got, err := svc.Get(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("entry must stay pending when the mutation fails, got %s", got.Status)
	}
}

func TestProposeValidation(t *testing.T) {
	svc, _ := newTestWorkflow(t)
	ctx := context.Background()

	if _, err := svc.Propose(ctx, requester, Target{}, testMutation, payload); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty target: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Propose(ctx, requester, productP, "unknown.mutation", payload); !errors.Is(err, ErrValidation) {
		t.Fatalf("unregistered mutation: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Propose(ctx, requester, productP, testMutation, json.RawMessage(`{broken`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid payload: expected ErrValidation, got %v", err)
	}
}

func TestHasPendingBlocksUntilResolved(t *testing.T) {
	svc, _ := newTestWorkflow(t)
	ctx := context.Background()

	pending, err := svc.HasPending(ctx, productP)
	if err != nil || pending {
		t.Fatalf("expected no pending entries: %v %v", pending, err)
	}
	entry, err := svc.Propose(ctx, requester, productP, testMutation, payload)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if pending, _ := svc.HasPending(ctx, productP); !pending {
		t.Fatal("expected pending entry for target")
	}
	if _, err := svc.Approve(ctx, entry.ID, reviewer); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if pending, _ := svc.HasPending(ctx, productP); pending {
		t.Fatal("resolved entries must not count as pending")
	}
}
