package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tacklebase.app/internal/approval"
)

// MutationKeyStockAdjust names the audited stock-correction mutation.
const MutationKeyStockAdjust = "stock.adjust"

// StockAdjustment is the payload of a stock.adjust proposal. Delta is the
// signed change to apply; Reason explains it for the audit trail.
type StockAdjustment struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (a StockAdjustment) Validate() error {
	if a.Delta == 0 {
		return fmt.Errorf("%w: delta must be non-zero", ErrValidation)
	}
	if strings.TrimSpace(a.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrValidation)
	}
	return nil
}

// StockApplier executes approved stock corrections. It runs inside the
// approval store's transaction, so the status flip and the quantity change
// commit together.
type StockApplier struct {
	store Store
}

var _ approval.Applier = (*StockApplier)(nil)

func NewStockApplier(store Store) *StockApplier {
	return &StockApplier{store: store}
}

func (a *StockApplier) Apply(ctx context.Context, exec approval.Execer, target approval.Target, payload json.RawMessage) error {
	if target.Kind != "product" {
		return fmt.Errorf("%w: unsupported target kind %q", ErrValidation, target.Kind)
	}
	var adj StockAdjustment
	if err := json.Unmarshal(payload, &adj); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := adj.Validate(); err != nil {
		return err
	}
	return a.store.AdjustStock(ctx, exec, target.ID, adj.Delta)
}
