package auth

import "fmt"

// Operation identifies a protected action on the permission surface.
type Operation string

const (
	OpWorkerCreate    Operation = "worker.create"
	OpWorkerRead      Operation = "worker.read"
	OpWorkerUpdate    Operation = "worker.update"
	OpWorkerDelete    Operation = "worker.delete"
	OpProductRead     Operation = "product.read"
	OpProductWrite    Operation = "product.write"
	OpStockPropose    Operation = "stock.propose"
	OpSaleRecord      Operation = "sale.record"
	OpSaleRead        Operation = "sale.read"
	OpApprovalRead    Operation = "approval.read"
	OpApprovalResolve Operation = "approval.resolve"
)

// Resource describes the target of an operation. OwnerID carries the worker
// association where ownership restrictions apply.
type Resource struct {
	Kind    string
	ID      string
	OwnerID string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow grants the operation.
func Allow() Decision { return Decision{Allowed: true} }

// Deny refuses the operation with an actionable reason.
func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// workerOps enumerates the operations a worker may perform; ownership-bound
// operations additionally require the resource to belong to the worker.
var workerOps = map[Operation]bool{
	// true = restricted to resources the worker owns
	OpWorkerRead:   true,
	OpWorkerUpdate: true,
	OpSaleRead:     true,
	OpSaleRecord:   false,
	OpProductRead:  false,
}

// Authorize maps a verified identity and operation onto an allow/deny
// decision. It is a pure function: no I/O, no ambient state, and every
// (role, operation) pair has a defined outcome. Anything not explicitly
// allowed is denied.
func Authorize(id Identity, op Operation, res Resource) Decision {
	if id == nil {
		return Deny("no identity")
	}
	switch id.IdentityRole() {
	case RoleAdmin:
		// Admins hold every permission; the approval workflow separately
		// forbids resolving one's own proposals.
		return Allow()
	case RoleWorker:
		owned, ok := workerOps[op]
		if !ok {
			return Deny(fmt.Sprintf("operation %s requires admin role", op))
		}
		if owned && res.OwnerID != id.IdentityID() && res.ID != id.IdentityID() {
			return Deny("workers may only access their own records")
		}
		return Allow()
	default:
		return Deny(fmt.Sprintf("unknown role %q", id.IdentityRole()))
	}
}

// CanApprove reports whether the identity holds approval permission.
func CanApprove(id Identity) bool {
	return Authorize(id, OpApprovalResolve, Resource{}).Allowed
}
