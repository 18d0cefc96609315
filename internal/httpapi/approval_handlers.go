package httpapi

import (
	"net/http"
	"strings"

	"tacklebase.app/internal/approval"
	"tacklebase.app/internal/audit"
	"tacklebase.app/internal/auth"
)

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleApprovalsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpApprovalRead, auth.Resource{Kind: "approval"}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}

	status := approval.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	switch status {
	case "", approval.StatusPending, approval.StatusApproved, approval.StatusRejected:
	default:
		writeError(w, r, http.StatusBadRequest, "unknown status filter")
		return
	}

	entries, err := a.approvals.List(r.Context(), status)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (a *API) handleApprovalResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/approvals/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/approve"); ok {
		a.resolveEntry(w, r, strings.TrimSuffix(id, "/"), true)
		return
	}
	if id, ok := strings.CutSuffix(path, "/reject"); ok {
		a.resolveEntry(w, r, strings.TrimSuffix(id, "/"), false)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpApprovalRead, auth.Resource{Kind: "approval", ID: path}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}
	entry, err := a.approvals.Get(r.Context(), path)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) resolveEntry(w http.ResponseWriter, r *http.Request, id string, approve bool) {
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var (
		entry *approval.Entry
		err   error
		event string
	)
	if approve {
		entry, err = a.approvals.Approve(r.Context(), id, identity)
		event = "approval.approved"
	} else {
		var req rejectRequest
		if decErr := decodeJSON(w, r, &req); decErr != nil {
			writeError(w, r, http.StatusBadRequest, decErr.Error())
			return
		}
		entry, err = a.approvals.Reject(r.Context(), id, identity, req.Reason)
		event = "approval.rejected"
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"entry_id":     entry.ID,
		"target_kind":  entry.Target.Kind,
		"target_id":    entry.Target.ID,
		"mutation_key": entry.MutationKey,
	})
	writeJSON(w, http.StatusOK, entry)
}
