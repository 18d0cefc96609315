package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tacklebase.app/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth authenticates every non-public request. Worker session tokens
// and externally issued admin tokens share the bearer scheme; the worker
// issuer is tried first and the admin verifier is consulted only when the
// token was not minted by this service.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		identity, err := a.authenticate(r, token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				writeError(w, r, http.StatusUnauthorized, "token expired")
			case errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrTokenSignatureInvalid):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) authenticate(r *http.Request, token string) (auth.Identity, error) {
	identity, workerErr := a.auth.VerifyWorker(r.Context(), token)
	if workerErr == nil {
		return identity, nil
	}
	adminIdentity, adminErr := a.auth.VerifyAdmin(r.Context(), token)
	if adminErr == nil {
		return adminIdentity, nil
	}
	// Expiry from either domain is the most actionable signal for the
	// client; otherwise report the worker-domain failure.
	if errors.Is(adminErr, auth.ErrTokenExpired) {
		return nil, adminErr
	}
	return nil, workerErr
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
