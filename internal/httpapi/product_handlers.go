package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tacklebase.app/internal/approval"
	"tacklebase.app/internal/audit"
	"tacklebase.app/internal/auth"
	"tacklebase.app/internal/ids"
	"tacklebase.app/internal/inventory"
)

type createProductRequest struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	StockQty       int64  `json:"stock_qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (a *API) handleProductsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createProduct(w, r)
	case http.MethodGet:
		a.listProducts(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProductResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	// Stock corrections land on the audit workflow, never on the product
	// row directly.
	if id, ok := strings.CutSuffix(path, "/stock"); ok {
		id = strings.TrimSuffix(id, "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.proposeStockCorrection(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getProduct(w, r, path)
	case http.MethodDelete:
		a.deleteProduct(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpProductWrite, auth.Resource{Kind: "product"}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}

	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	product := &inventory.Product{
		ID:             ids.New(),
		SKU:            strings.TrimSpace(req.SKU),
		Name:           strings.TrimSpace(req.Name),
		StockQty:       req.StockQty,
		UnitPriceCents: req.UnitPriceCents,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.products.Create(r.Context(), product); err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "product.created", map[string]any{
		"product_id": product.ID,
		"sku":        product.SKU,
	})
	w.Header().Set("Location", "/v1/products/"+product.ID)
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpProductRead, auth.Resource{Kind: "product"}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}
	products, err := a.products.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpProductRead, auth.Resource{Kind: "product", ID: id}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}
	product, err := a.products.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// proposeStockCorrection records a stock adjustment as a pending audit
// entry. The quantity only changes once another admin approves it.
func (a *API) proposeStockCorrection(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpStockPropose, auth.Resource{Kind: "product", ID: id}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}

	var req inventory.StockAdjustment
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		handleDomainError(w, r, err)
		return
	}

	// Propose against a live product only; the payload is validated again
	// at apply time.
	if _, err := a.products.Get(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}

	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	entry, err := a.approvals.Propose(r.Context(), identity,
		approval.Target{Kind: "product", ID: id}, inventory.MutationKeyStockAdjust, payload)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "approval.proposed", map[string]any{
		"entry_id":     entry.ID,
		"target_kind":  "product",
		"target_id":    id,
		"mutation_key": inventory.MutationKeyStockAdjust,
	})
	w.Header().Set("Location", "/v1/approvals/"+entry.ID)
	writeJSON(w, http.StatusAccepted, entry)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if d := auth.Authorize(identity, auth.OpProductWrite, auth.Resource{Kind: "product", ID: id}); !d.Allowed {
		writeError(w, r, http.StatusForbidden, d.Reason)
		return
	}

	pending, err := a.approvals.HasPending(r.Context(), approval.Target{Kind: "product", ID: id})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if pending {
		writeError(w, r, http.StatusConflict, "product has pending audit entries")
		return
	}

	if err := a.products.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "product.deleted", map[string]any{
		"product_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}
