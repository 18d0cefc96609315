package inventory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tacklebase.app/internal/approval"
)

const pgErrUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// PGStore persists products in PostgreSQL. Stock adjustments guard the
// non-negative invariant in the UPDATE itself so concurrent corrections
// cannot race quantities below zero.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`insert into products(id, sku, name, stock_qty, unit_price_cents, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.SKU, p.Name, p.StockQty, p.UnitPriceCents, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx,
		`select id, sku, name, stock_qty, unit_price_cents, created_at, updated_at
		 from products where id=$1`, id))
}

func (s *PGStore) List(ctx context.Context) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, sku, name, stock_qty, unit_price_cents, created_at, updated_at
		 from products order by sku asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) AdjustStock(ctx context.Context, exec approval.Execer, id string, delta int64) error {
	if exec == nil {
		exec = s.db
	}
	res, err := exec.ExecContext(ctx,
		`update products
		 set stock_qty = stock_qty + $2, updated_at = $3
		 where id = $1 and stock_qty + $2 >= 0`,
		id, delta, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	err = exec.QueryRowContext(ctx,
		`select exists(select 1 from products where id=$1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInsufficientStock
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from products where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.StockQty, &p.UnitPriceCents, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
