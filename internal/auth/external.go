package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// adminClaims are the claims expected in provider-issued admin tokens.
type adminClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AdminVerifier validates session tokens minted by the external identity
// provider. The service never issues or stores admin credentials itself.
type AdminVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// AdminVerifierOption configures an AdminVerifier.
type AdminVerifierOption func(*AdminVerifier)

// WithAdminClock overrides the time source (useful for tests).
func WithAdminClock(fn func() time.Time) AdminVerifierOption {
	return func(v *AdminVerifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewAdminVerifier constructs a verifier for the provider's signing secret
// and issuer claim.
func NewAdminVerifier(secret, issuer string, opts ...AdminVerifierOption) (*AdminVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: provider secret is required")
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, errors.New("auth: provider issuer is required")
	}
	v := &AdminVerifier{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// VerifyExternal checks the provider signature, expiry, and role claim. A
// token whose role claim is missing or not "admin" is rejected exactly like
// a forged signature: the caller learns nothing about partial validity.
func (v *AdminVerifier) VerifyExternal(token string) (AdminIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AdminIdentity{}, ErrTokenMalformed
	}
	claims := &adminClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return AdminIdentity{}, mapTokenError(err)
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Role != string(RoleAdmin) {
		return AdminIdentity{}, ErrTokenSignatureInvalid
	}
	return AdminIdentity{Subject: claims.Subject, Email: claims.Email}, nil
}
