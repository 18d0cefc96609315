package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tacklebase.app/internal/audit"
	"tacklebase.app/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Worker    *auth.Worker `json:"worker"`
}

type refreshRequest struct {
	Token string `json:"token"`
}

type refreshResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := a.auth.Login(r.Context(), clientIP(r), email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrRateLimited) {
			_ = audit.LogEvent(r.Context(), "auth.login.rate_limited", map[string]any{
				"client": clientIP(r),
			})
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		// Every credential failure maps to the same message so responses
		// do not reveal which emails have accounts.
		_ = audit.LogEvent(r.Context(), "auth.login.denied", map[string]any{
			"client": clientIP(r),
		})
		writeError(w, r, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login.success", map[string]any{
		"worker_id": result.Worker.ID,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Worker:    result.Worker,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	token, expiresAt, err := a.auth.Refresh(r.Context(), req.Token)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Token: token, ExpiresAt: expiresAt})
}

// handleVerify reports who the presented token belongs to. The middleware
// already verified it; this endpoint just reflects the identity.
func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role":  string(identity.IdentityRole()),
		"id":    identity.IdentityID(),
		"email": identity.IdentityEmail(),
	})
}
