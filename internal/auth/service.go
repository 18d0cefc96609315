package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"tacklebase.app/internal/obs"
)

// Service authenticates principals from both credential domains and is the
// entry point every protected handler consults. All operations take the
// verified identity explicitly; nothing is read from ambient state.
type Service struct {
	store   WorkerStore
	issuer  *Issuer
	admin   *AdminVerifier
	limiter *RateLimiter
	now     func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRateLimiter installs a login throttle, consulted before any
// credential work.
func WithRateLimiter(l *RateLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the credential store, worker token issuer, and external
// admin verifier into one authentication surface.
func NewService(store WorkerStore, issuer *Issuer, admin *AdminVerifier, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		issuer: issuer,
		admin:  admin,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginResult is returned on successful worker authentication. The worker
// record it carries never exposes the password hash.
type LoginResult struct {
	Worker    *Worker
	Token     string
	ExpiresAt time.Time
}

// Login authenticates worker credentials and issues a session token. The
// rate limit is enforced before any hashing work, and every credential
// failure collapses to ErrInvalidCredentials so callers cannot probe for
// registered emails. A successful login appends to the worker's bounded
// login history.
func (s *Service) Login(ctx context.Context, clientKey, email, password string) (LoginResult, error) {
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		obs.ObserveLogin("rate_limited")
		return LoginResult{}, ErrRateLimited
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		obs.ObserveLogin("denied")
		return LoginResult{}, ErrInvalidCredentials
	}

	worker, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		obs.ObserveLogin("denied")
		return LoginResult{}, ErrInvalidCredentials
	}
	if !VerifyPassword(worker.PasswordHash, password) {
		obs.ObserveLogin("denied")
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.AppendLogin(ctx, worker.ID, now); err != nil {
		return LoginResult{}, err
	}
	worker.LoginHistory.Append(now)

	token, expiresAt, err := s.issuer.Issue(worker.Identity())
	if err != nil {
		return LoginResult{}, err
	}
	obs.ObserveLogin("ok")
	return LoginResult{Worker: worker, Token: token, ExpiresAt: expiresAt}, nil
}

// Refresh exchanges a still-valid worker token for one with renewed expiry.
func (s *Service) Refresh(ctx context.Context, token string) (string, time.Time, error) {
	return s.issuer.Refresh(token)
}

// VerifyWorker validates a worker session token.
func (s *Service) VerifyWorker(ctx context.Context, token string) (WorkerIdentity, error) {
	return s.issuer.Verify(token)
}

// VerifyAdmin validates a provider-issued admin token. Admin login history
// is the provider's responsibility, so nothing is recorded here.
func (s *Service) VerifyAdmin(ctx context.Context, token string) (AdminIdentity, error) {
	return s.admin.VerifyExternal(token)
}

// RegisterWorker creates a worker credential record. Admin-only at the
// API layer.
func (s *Service) RegisterWorker(ctx context.Context, email, password string, monthlySalaryCents int64) (*Worker, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidInput
	}
	if len(password) < 8 {
		return nil, ErrInvalidInput
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, ErrInvalidInput
	}
	now := s.now().UTC()
	worker := &Worker{
		ID:                 uuid.NewString(),
		Email:              email,
		PasswordHash:       hash,
		MonthlySalaryCents: monthlySalaryCents,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, worker); err != nil {
		return nil, err
	}
	return worker, nil
}

// Worker returns one worker record, subject to RBAC: admins may read any
// worker, workers only themselves.
func (s *Service) Worker(ctx context.Context, requester Identity, id string) (*Worker, error) {
	decision := Authorize(requester, OpWorkerRead, Resource{Kind: "worker", ID: id, OwnerID: id})
	if !decision.Allowed {
		return nil, ErrPermissionDenied
	}
	return s.store.Find(ctx, id)
}

// Workers lists all worker records. Admin-only.
func (s *Service) Workers(ctx context.Context, requester Identity) ([]*Worker, error) {
	if !Authorize(requester, OpWorkerRead, Resource{Kind: "worker"}).Allowed {
		return nil, ErrPermissionDenied
	}
	return s.store.List(ctx)
}

// ChangePassword stores a new password hash. Workers change only their own
// password and must present the current one; admins may reset any worker's
// password without it.
func (s *Service) ChangePassword(ctx context.Context, requester Identity, id, current, newPassword string) error {
	if !Authorize(requester, OpWorkerUpdate, Resource{Kind: "worker", ID: id, OwnerID: id}).Allowed {
		return ErrPermissionDenied
	}
	if len(newPassword) < 8 {
		return ErrInvalidInput
	}
	if requester.IdentityRole() == RoleWorker {
		worker, err := s.store.Find(ctx, id)
		if err != nil {
			return err
		}
		if !VerifyPassword(worker.PasswordHash, current) {
			return ErrInvalidCredentials
		}
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return ErrInvalidInput
	}
	return s.store.UpdatePassword(ctx, id, hash)
}

// DeleteWorker removes a worker account. Admin-only.
func (s *Service) DeleteWorker(ctx context.Context, requester Identity, id string) error {
	if !Authorize(requester, OpWorkerDelete, Resource{Kind: "worker", ID: id}).Allowed {
		return ErrPermissionDenied
	}
	return s.store.Delete(ctx, id)
}
