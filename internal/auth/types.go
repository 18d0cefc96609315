package auth

import (
	"sort"
	"time"
)

// Role classifies a verified principal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWorker Role = "worker"
)

// Identity is a verified principal. The two concrete variants cover the two
// credential domains: admins authenticated by the external identity provider
// and workers authenticated against the self-hosted credential store.
type Identity interface {
	IdentityID() string
	IdentityEmail() string
	IdentityRole() Role
}

// AdminIdentity is minted from a provider-issued session token.
type AdminIdentity struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
}

func (a AdminIdentity) IdentityID() string    { return a.Subject }
func (a AdminIdentity) IdentityEmail() string { return a.Email }
func (a AdminIdentity) IdentityRole() Role    { return RoleAdmin }

// WorkerIdentity is minted from a self-hosted worker session token.
type WorkerIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (w WorkerIdentity) IdentityID() string    { return w.ID }
func (w WorkerIdentity) IdentityEmail() string { return w.Email }
func (w WorkerIdentity) IdentityRole() Role    { return RoleWorker }

// LoginHistoryCapacity bounds the per-worker login history.
const LoginHistoryCapacity = 10

// LoginHistory is a capped, timestamp-ordered record of successful logins.
// The capacity is enforced at the write site: appending beyond capacity
// evicts the oldest entry.
type LoginHistory struct {
	times []time.Time
}

// NewLoginHistory builds a history from existing timestamps, trimming to
// capacity and sorting chronologically.
func NewLoginHistory(times []time.Time) LoginHistory {
	h := LoginHistory{}
	for _, t := range times {
		h.Append(t)
	}
	return h
}

// Append records one login event, keeping entries in timestamp order and
// evicting the oldest once capacity is exceeded.
func (h *LoginHistory) Append(t time.Time) {
	idx := sort.Search(len(h.times), func(i int) bool { return h.times[i].After(t) })
	h.times = append(h.times, time.Time{})
	copy(h.times[idx+1:], h.times[idx:])
	h.times[idx] = t
	if len(h.times) > LoginHistoryCapacity {
		h.times = h.times[len(h.times)-LoginHistoryCapacity:]
	}
}

// Times returns a copy of the recorded timestamps in chronological order.
func (h LoginHistory) Times() []time.Time {
	out := make([]time.Time, len(h.times))
	copy(out, h.times)
	return out
}

// Len reports the number of recorded logins.
func (h LoginHistory) Len() int { return len(h.times) }

// Worker is the persisted credential record for a worker account.
// The password hash never appears in outward-facing representations.
type Worker struct {
	ID                 string       `json:"id"`
	Email              string       `json:"email"`
	PasswordHash       string       `json:"-"`
	MonthlySalaryCents int64        `json:"monthly_salary_cents"`
	RevenueCents       int64        `json:"revenue_cents"`
	LoginHistory       LoginHistory `json:"-"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Identity derives the session identity for this worker record.
func (w *Worker) Identity() WorkerIdentity {
	return WorkerIdentity{ID: w.ID, Email: w.Email}
}
