package approval

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tacklebase.app/internal/auth"
)

const pgErrUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// PGStore persists audit entries in PostgreSQL. The pending-uniqueness
// invariant is enforced by a partial unique index on (target_kind,
// target_id, mutation_key) where status='pending'; transitions guard on
// status='pending' in the UPDATE so concurrent resolutions of the same
// entry serialize and the loser sees InvalidState.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const entryColumns = `id, target_kind, target_id, mutation_key, payload,
	requester_role, requester_id, requester_email,
	approver_role, approver_id, approver_email,
	status, reason, created_at, resolved_at`

func (s *PGStore) Create(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`insert into audit_entries(id, target_kind, target_id, mutation_key, payload,
		   requester_role, requester_id, requester_email, status, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.Target.Kind, e.Target.ID, e.MutationKey, []byte(e.Payload),
		string(e.Requester.Role), e.Requester.ID, e.Requester.Email,
		string(e.Status), e.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+entryColumns+` from audit_entries where id=$1`, id)
	return scanEntry(row)
}

func (s *PGStore) List(ctx context.Context, status Status) ([]*Entry, error) {
	query := `select ` + entryColumns + ` from audit_entries`
	args := []any{}
	if status != "" {
		query += ` where status=$1`
		args = append(args, string(status))
	}
	query += ` order by created_at asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGStore) Approve(ctx context.Context, id string, approver IdentityRef, resolvedAt time.Time, apply ApplyFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update audit_entries
		 set status=$2, approver_role=$3, approver_id=$4, approver_email=$5, resolved_at=$6
		 where id=$1 and status=$7`,
		id, string(StatusApproved),
		string(approver.Role), approver.ID, approver.Email,
		resolvedAt, string(StatusPending),
	)
	if err != nil {
		return err
	}
	if err := s.requireTransitioned(ctx, tx, res, id); err != nil {
		return err
	}
	if err := apply(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) Reject(ctx context.Context, id string, approver IdentityRef, reason string, resolvedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update audit_entries
		 set status=$2, approver_role=$3, approver_id=$4, approver_email=$5, reason=$6, resolved_at=$7
		 where id=$1 and status=$8`,
		id, string(StatusRejected),
		string(approver.Role), approver.ID, approver.Email,
		reason, resolvedAt, string(StatusPending),
	)
	if err != nil {
		return err
	}
	if err := s.requireTransitioned(ctx, tx, res, id); err != nil {
		return err
	}
	return tx.Commit()
}

// requireTransitioned distinguishes a missing entry from one already
// resolved when the guarded UPDATE matched no row.
func (s *PGStore) requireTransitioned(ctx context.Context, tx *sql.Tx, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var status string
	err = tx.QueryRowContext(ctx, `select status from audit_entries where id=$1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidState
}

func (s *PGStore) PendingForTarget(ctx context.Context, target Target) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from audit_entries where target_kind=$1 and target_id=$2 and status=$3)`,
		target.Kind, target.ID, string(StatusPending),
	).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e             Entry
		payload       []byte
		requesterRole string
		approverRole  sql.NullString
		approverID    sql.NullString
		approverEmail sql.NullString
		status        string
		reason        sql.NullString
		resolvedAt    sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.Target.Kind, &e.Target.ID, &e.MutationKey, &payload,
		&requesterRole, &e.Requester.ID, &e.Requester.Email,
		&approverRole, &approverID, &approverEmail,
		&status, &reason, &e.CreatedAt, &resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	e.Requester.Role = auth.Role(requesterRole)
	e.Status = Status(status)
	if approverID.Valid {
		e.Approver = &IdentityRef{
			Role:  auth.Role(approverRole.String),
			ID:    approverID.String,
			Email: approverEmail.String,
		}
	}
	if reason.Valid {
		r := reason.String
		e.Reason = &r
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		e.ResolvedAt = &t
	}
	return &e, nil
}
