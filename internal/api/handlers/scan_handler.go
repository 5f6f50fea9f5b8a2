package handlers

import (
	"bakery-service/internal/repository"
	"bakery-service/internal/token"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ScanHandler consumes pickup QR codes at the counter.
type ScanHandler struct {
	orders repository.OrderRepository
}

func NewScanHandler(orders repository.OrderRepository) *ScanHandler {
	return &ScanHandler{orders: orders}
}

type ScanRequest struct {
	Payload string `json:"payload" validate:"required"`
}

func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	orderNumber, err := token.Decode(req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	order, err := h.orders.Redeem(r.Context(), orderNumber)
	if err != nil {
		respondError(w, err)
		return
	}

	log.Info().Str("order_number", order.OrderNumber).Msg("order redeemed")

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "order " + order.OrderNumber + " redeemed",
		"order":   order,
	})
}
