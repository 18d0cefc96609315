package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGStoreFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("select id, email, password_hash, monthly_salary_cents, revenue_cents, created_at, updated_at").
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "monthly_salary_cents", "revenue_cents", "created_at", "updated_at"}).
			AddRow("w-1", "a@x.com", "$2a$10$hash", int64(250000), int64(0), now, now))
	mock.ExpectQuery("select occurred_at from worker_logins").
		WithArgs("w-1").
		WillReturnRows(sqlmock.NewRows([]string{"occurred_at"}).
			AddRow(now.Add(-time.Hour)).
			AddRow(now))

	store := NewPGStore(db)
	w, err := store.FindByEmail(context.Background(), "A@X.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if w.ID != "w-1" || w.Email != "a@x.com" {
		t.Fatalf("unexpected worker: %+v", w)
	}
	if w.LoginHistory.Len() != 2 {
		t.Fatalf("expected 2 history entries, got %d", w.LoginHistory.Len())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, email, password_hash").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := NewPGStore(db)
	if _, err := store.Find(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreAppendLoginTrimsInsideTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("select id from workers where id=.. for update").
		WithArgs("w-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("w-1"))
	mock.ExpectExec("insert into worker_logins").
		WithArgs("w-1", at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("delete from worker_logins").
		WithArgs("w-1", LoginHistoryCapacity).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewPGStore(db)
	if err := store.AppendLogin(context.Background(), "w-1", at); err != nil {
		t.Fatalf("AppendLogin: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreAppendLoginUnknownWorker(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("select id from workers where id=.. for update").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	store := NewPGStore(db)
	if err := store.AppendLogin(context.Background(), "ghost", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into workers").
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			Message:        "duplicate key value violates unique constraint \"workers_email_key\"",
			ConstraintName: "workers_email_key",
		})

	store := NewPGStore(db)
	w := &Worker{ID: "w-2", Email: "a@x.com", PasswordHash: "$2a$10$hash"}
	if err := store.Create(context.Background(), w); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
