package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	iss, err := NewIssuer("test-secret", WithSessionTTL(time.Hour))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	ver, err := NewAdminVerifier("provider-secret", "https://id.example.com")
	if err != nil {
		t.Fatalf("NewAdminVerifier: %v", err)
	}
	return NewService(store, iss, ver, opts...), store
}

func registerWorker(t *testing.T, svc *Service, email, password string) *Worker {
	t.Helper()
	w, err := svc.RegisterWorker(context.Background(), email, password, 250_000)
	if err != nil {
		t.Fatalf("RegisterWorker: %v", err)
	}
	return w
}

func TestLoginIssuesTokenAndRecordsHistory(t *testing.T) {
	svc, store := newTestService(t)
	w := registerWorker(t, svc, "a@x.com", "password123")

	res, err := svc.Login(context.Background(), "10.0.0.1", "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected session token")
	}
	if res.Worker.ID != w.ID {
		t.Fatalf("unexpected worker: %s", res.Worker.ID)
	}

	id, err := svc.VerifyWorker(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("VerifyWorker: %v", err)
	}
	if id.ID != w.ID || id.Email != "a@x.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	stored, err := store.Find(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if stored.LoginHistory.Len() != 1 {
		t.Fatalf("expected one history entry, got %d", stored.LoginHistory.Len())
	}
}

func TestLoginFailureIsGeneric(t *testing.T) {
	svc, _ := newTestService(t)
	registerWorker(t, svc, "a@x.com", "password123")

	_, unknownErr := svc.Login(context.Background(), "k", "nobody@x.com", "password123")
	_, wrongErr := svc.Login(context.Background(), "k", "a@x.com", "wrong-password")

	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatal("unknown-email and wrong-password failures must be indistinguishable")
	}
}

func TestLoginRateLimitedBeforeCredentialCheck(t *testing.T) {
	svc, _ := newTestService(t, WithRateLimiter(NewRateLimiter(1, 1)))
	registerWorker(t, svc, "a@x.com", "password123")

	if _, err := svc.Login(context.Background(), "1.2.3.4", "a@x.com", "password123"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, err := svc.Login(context.Background(), "1.2.3.4", "a@x.com", "password123"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	// Other clients keep their own bucket.
	if _, err := svc.Login(context.Background(), "5.6.7.8", "a@x.com", "password123"); err != nil {
		t.Fatalf("different client key should pass: %v", err)
	}
}

func TestRefreshFlow(t *testing.T) {
	svc, _ := newTestService(t)
	registerWorker(t, svc, "a@x.com", "password123")

	res, err := svc.Login(context.Background(), "k", "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	renewed, expiresAt, err := svc.Refresh(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if renewed == "" || !expiresAt.After(time.Now()) {
		t.Fatalf("unexpected refresh result: %q %v", renewed, expiresAt)
	}
}

func TestWorkerRecordNeverExposesPasswordHash(t *testing.T) {
	svc, _ := newTestService(t)
	w := registerWorker(t, svc, "a@x.com", "password123")

	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal worker: %v", err)
	}
	if strings.Contains(string(data), w.PasswordHash) || strings.Contains(string(data), "password_hash") {
		t.Fatalf("serialized worker leaks password hash: %s", data)
	}
}

func TestWorkerReadOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	w1 := registerWorker(t, svc, "a@x.com", "password123")
	w2 := registerWorker(t, svc, "b@x.com", "password456")

	self := WorkerIdentity{ID: w1.ID, Email: w1.Email}
	if _, err := svc.Worker(context.Background(), self, w1.ID); err != nil {
		t.Fatalf("worker reading own record: %v", err)
	}
	if _, err := svc.Worker(context.Background(), self, w2.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("worker reading another record: expected ErrPermissionDenied, got %v", err)
	}

	admin := AdminIdentity{Subject: "adm-1", Email: "boss@x.com"}
	if _, err := svc.Worker(context.Background(), admin, w2.ID); err != nil {
		t.Fatalf("admin reading any record: %v", err)
	}
	if _, err := svc.Workers(context.Background(), self); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("worker listing all: expected ErrPermissionDenied, got %v", err)
	}
}

func TestRegisterWorkerValidation(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.RegisterWorker(context.Background(), "not-an-email", "pw", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	registerWorker(t, svc, "a@x.com", "password123")
	if _, err := svc.RegisterWorker(context.Background(), "A@X.com", "password123", 0); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate email, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	w1 := registerWorker(t, svc, "a@x.com", "password123")
	w2 := registerWorker(t, svc, "b@x.com", "password456")
	ctx := context.Background()

	self := WorkerIdentity{ID: w1.ID, Email: w1.Email}
	if err := svc.ChangePassword(ctx, self, w1.ID, "wrong-password", "newpassword1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, self, w2.ID, "password456", "newpassword1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("changing another worker's password: expected ErrPermissionDenied, got %v", err)
	}
	if err := svc.ChangePassword(ctx, self, w1.ID, "password123", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short new password: expected ErrInvalidInput, got %v", err)
	}

	if err := svc.ChangePassword(ctx, self, w1.ID, "password123", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(ctx, "10.0.0.1", "a@x.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := svc.Login(ctx, "10.0.0.1", "a@x.com", "newpassword1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	// Admins reset without the current password.
	admin := AdminIdentity{Subject: "adm-1", Email: "boss@x.com"}
	if err := svc.ChangePassword(ctx, admin, w2.ID, "", "resetpassword1"); err != nil {
		t.Fatalf("admin reset: %v", err)
	}
	if _, err := svc.Login(ctx, "10.0.0.1", "b@x.com", "resetpassword1"); err != nil {
		t.Fatalf("login after admin reset: %v", err)
	}
}
