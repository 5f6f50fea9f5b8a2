package handlers

import (
	"bakery-service/internal/models"
	"bakery-service/internal/repository"
	"context"
	"net/http"
	"time"
)

// CacheInvalidator drops cached catalog entries after stock writes that
// bypass the cached repository. *cache.CachedProductRepository satisfies
// it; nil means the catalog is served uncached.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, productID, categoryID string)
	InvalidateAll(ctx context.Context)
}

type StockHandler struct {
	stock       repository.StockRepository
	invalidator CacheInvalidator
	defaultDays int
}

func NewStockHandler(stock repository.StockRepository, invalidator CacheInvalidator) *StockHandler {
	return &StockHandler{stock: stock, invalidator: invalidator, defaultDays: 30}
}

type AdjustStockRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	Type      string `json:"type" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

type SnapshotRequest struct {
	Type string `json:"type" validate:"required"`
}

func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	if !models.ValidAdjustmentType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid_input", "type must be ADD, REMOVE or SET", nil)
		return
	}

	product, adjustment, err := h.stock.Adjust(r.Context(), req.ProductID, req.Quantity, req.Type, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.invalidator != nil {
		h.invalidator.Invalidate(r.Context(), product.ProductID, product.CategoryID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product":    product,
		"adjustment": adjustment,
	})
}

func (h *StockHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	adjustments, err := h.stock.ListAdjustments(r.Context(), r.URL.Query().Get("product_id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adjustments)
}

func (h *StockHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	if !models.ValidSnapshotType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid_input", "type must be OPENING or CLOSING", nil)
		return
	}

	snapshots, err := h.stock.Snapshot(r.Context(), req.Type)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   req.Type + " snapshot recorded",
		"count":     len(snapshots),
		"snapshots": snapshots,
	})
}

func (h *StockHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDaysParam(r, h.defaultDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "days must be a positive integer", nil)
		return
	}

	snapshotType := r.URL.Query().Get("type")
	if snapshotType != "" && !models.ValidSnapshotType(snapshotType) {
		writeError(w, http.StatusBadRequest, "invalid_input", "type must be OPENING or CLOSING", nil)
		return
	}

	since := repository.Midnight(time.Now()).AddDate(0, 0, -days)
	snapshots, err := h.stock.ListSnapshots(r.Context(), r.URL.Query().Get("product_id"), snapshotType, since)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}
