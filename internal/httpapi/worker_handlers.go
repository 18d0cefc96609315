package httpapi

import (
	"net/http"
	"strings"

	"tacklebase.app/internal/approval"
	"tacklebase.app/internal/audit"
	"tacklebase.app/internal/auth"
)

type createWorkerRequest struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	MonthlySalaryCents int64  `json:"monthly_salary_cents"`
}

func (a *API) handleWorkersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createWorker(w, r)
	case http.MethodGet:
		a.listWorkers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleWorkerResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/workers/")
	if id, ok := strings.CutSuffix(path, "/password"); ok {
		id = strings.TrimSuffix(id, "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "worker not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.changePassword(w, r, id)
		return
	}

	id := path
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getWorker(w, r, id)
	case http.MethodDelete:
		a.deleteWorker(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) createWorker(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpWorkerCreate, auth.Resource{Kind: "worker"}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}

	var req createWorkerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	worker, err := a.auth.RegisterWorker(r.Context(), req.Email, req.Password, req.MonthlySalaryCents)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "worker.created", map[string]any{
		"worker_id": worker.ID,
	})
	w.Header().Set("Location", "/v1/workers/"+worker.ID)
	writeJSON(w, http.StatusCreated, worker)
}

func (a *API) listWorkers(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	workers, err := a.auth.Workers(r.Context(), identity)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": workers})
}

func (a *API) getWorker(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	worker, err := a.auth.Worker(r.Context(), identity, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), identity, id, req.CurrentPassword, req.NewPassword); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "worker.password_changed", map[string]any{
		"worker_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteWorker(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpWorkerDelete, auth.Resource{Kind: "worker", ID: id}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}

	// Deletion is blocked while proposals still reference the worker so
	// the audit trail never points at a vanished target.
	pending, err := a.approvals.HasPending(r.Context(), approval.Target{Kind: "worker", ID: id})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if pending {
		writeError(w, r, http.StatusConflict, "worker has pending audit entries")
		return
	}

	if err := a.auth.DeleteWorker(r.Context(), identity, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "worker.deleted", map[string]any{
		"worker_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}
