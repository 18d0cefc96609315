// Package inventory manages the product catalog and stock levels. Direct
// stock writes are not exposed over the API; corrections arrive as audit
// proposals and are applied by StockApplier once approved.
package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"tacklebase.app/internal/approval"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrAlreadyExists     = errors.New("inventory: product already exists")
	ErrInsufficientStock = errors.New("inventory: stock cannot go negative")
	ErrValidation        = errors.New("inventory: invalid product")
)

// Product is a catalog item. Quantities and prices are integers; prices are
// stored in cents to avoid float rounding.
type Product struct {
	ID             string    `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	StockQty       int64     `json:"stock_qty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks invariants on a product before it is stored.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" || strings.TrimSpace(p.Name) == "" {
		return ErrValidation
	}
	if p.StockQty < 0 || p.UnitPriceCents < 0 {
		return ErrValidation
	}
	return nil
}

// Store persists products. AdjustStock accepts an optional transaction
// handle so the adjustment can join the approval workflow's transaction;
// a nil exec runs against the store's own connection.
type Store interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	AdjustStock(ctx context.Context, exec approval.Execer, id string, delta int64) error
	Delete(ctx context.Context, id string) error
}
