package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgErrUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// PGStore implements WorkerStore on PostgreSQL. Login history lives in a
// companion table and is trimmed to capacity inside the same transaction
// that appends, under a row lock on the worker, so concurrent logins for
// one worker serialize.
type PGStore struct {
	db *sql.DB
}

var _ WorkerStore = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, w *Worker) error {
	email := strings.TrimSpace(strings.ToLower(w.Email))
	if w.ID == "" || email == "" {
		return ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx,
		`insert into workers(id, email, password_hash, monthly_salary_cents, revenue_cents)
		 values($1,$2,$3,$4,$5)`,
		w.ID, email, w.PasswordHash, w.MonthlySalaryCents, w.RevenueCents,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Worker, error) {
	return s.findBy(ctx, `where id=$1`, id)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Worker, error) {
	return s.findBy(ctx, `where email=$1`, strings.TrimSpace(strings.ToLower(email)))
}

func (s *PGStore) findBy(ctx context.Context, where string, arg any) (*Worker, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, monthly_salary_cents, revenue_cents, created_at, updated_at
		 from workers `+where, arg)
	var w Worker
	if err := row.Scan(&w.ID, &w.Email, &w.PasswordHash, &w.MonthlySalaryCents, &w.RevenueCents, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	times, err := s.loginTimes(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	w.LoginHistory = NewLoginHistory(times)
	return &w, nil
}

func (s *PGStore) loginTimes(ctx context.Context, id string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`select occurred_at from worker_logins where worker_id=$1 order by occurred_at asc`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (s *PGStore) List(ctx context.Context) ([]*Worker, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, email, password_hash, monthly_salary_cents, revenue_cents, created_at, updated_at
		 from workers order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*Worker
	for rows.Next() {
		var w Worker
		if err := rows.Scan(&w.ID, &w.Email, &w.PasswordHash, &w.MonthlySalaryCents, &w.RevenueCents, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		workers = append(workers, &w)
	}
	return workers, rows.Err()
}

func (s *PGStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update workers set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PGStore) AppendLogin(ctx context.Context, id string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Row lock serializes concurrent logins for the same worker.
	var locked string
	if err := tx.QueryRowContext(ctx, `select id from workers where id=$1 for update`, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into worker_logins(worker_id, occurred_at) values($1,$2)`, id, at.UTC()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`delete from worker_logins where worker_id=$1 and occurred_at not in (
		   select occurred_at from worker_logins where worker_id=$1 order by occurred_at desc limit $2
		 )`, id, LoginHistoryCapacity); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from workers where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
