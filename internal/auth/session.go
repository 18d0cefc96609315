package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultSessionTTL = time.Hour

// sessionClaims are the JWT claims carried by worker session tokens.
type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies short-lived worker session tokens (HS256).
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithSessionTTL overrides the token lifetime.
func WithSessionTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if name = strings.TrimSpace(name); name != "" {
			i.issuer = name
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer signing with the given secret.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: session secret is required")
	}
	iss := &Issuer{
		secret: []byte(secret),
		issuer: "tacklebase",
		ttl:    defaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a session token for the worker.
func (i *Issuer) Issue(w WorkerIdentity) (string, time.Time, error) {
	if strings.TrimSpace(w.ID) == "" {
		return "", time.Time{}, ErrInvalidInput
	}
	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := sessionClaims{
		Email: w.Email,
		Role:  string(RoleWorker),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   w.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates a worker session token and returns the identity it
// asserts. Failures map onto the token error taxonomy.
func (i *Issuer) Verify(token string) (WorkerIdentity, error) {
	claims, err := i.parse(token)
	if err != nil {
		return WorkerIdentity{}, err
	}
	return WorkerIdentity{ID: claims.Subject, Email: claims.Email}, nil
}

// Refresh issues a new token with renewed expiry and identical subject
// claims. An expired or otherwise invalid token can never be refreshed.
func (i *Issuer) Refresh(token string) (string, time.Time, error) {
	claims, err := i.parse(token)
	if err != nil {
		return "", time.Time{}, err
	}
	return i.Issue(WorkerIdentity{ID: claims.Subject, Email: claims.Email})
}

func (i *Issuer) parse(token string) (*sessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, mapTokenError(err)
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Role != string(RoleWorker) {
		return nil, ErrTokenSignatureInvalid
	}
	return claims, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenSignatureInvalid
	}
}
