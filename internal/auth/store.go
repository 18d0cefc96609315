package auth

import (
	"context"
	"time"
)

// WorkerStore describes persistence for worker credential records. All
// mutations are linearizable per worker: concurrent calls against the same
// worker behave as if serialized.
type WorkerStore interface {
	Create(ctx context.Context, w *Worker) error
	Find(ctx context.Context, id string) (*Worker, error)
	FindByEmail(ctx context.Context, email string) (*Worker, error)
	List(ctx context.Context) ([]*Worker, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// AppendLogin records a successful login, trimming history to capacity.
	AppendLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
