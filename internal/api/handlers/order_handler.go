package handlers

import (
	"bakery-service/internal/models"
	"bakery-service/internal/notify"
	"bakery-service/internal/qr"
	"bakery-service/internal/repository"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Notifier is the confirmation sink; *notify.Dispatcher satisfies it.
type Notifier interface {
	Enqueue(c notify.Confirmation)
}

type OrderHandler struct {
	orders      repository.OrderRepository
	notifier    Notifier
	invalidator CacheInvalidator
}

func NewOrderHandler(orders repository.OrderRepository, notifier Notifier, invalidator CacheInvalidator) *OrderHandler {
	return &OrderHandler{orders: orders, notifier: notifier, invalidator: invalidator}
}

// Order transactions write stock directly, underneath the catalog cache.
func (h *OrderHandler) dropCachedStock(r *http.Request) {
	if h.invalidator != nil {
		h.invalidator.InvalidateAll(r.Context())
	}
}

type OrderItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type CreateOrderRequest struct {
	Items      []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	PickupTime *time.Time       `json:"pickup_time"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req CreateOrderRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	items := make([]repository.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, repository.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.Create(r.Context(), identity.UserID, items, req.PickupTime)
	if err != nil {
		respondError(w, err)
		return
	}
	h.dropCachedStock(r)

	// The confirmation is queued only after the transaction committed; its
	// outcome never affects the response.
	if identity.Email != "" {
		h.notifier.Enqueue(confirmationFor(order, identity.Email))
	} else {
		log.Warn().Str("order_number", order.OrderNumber).Msg("no email on session, skipping confirmation")
	}

	writeJSON(w, http.StatusCreated, order)
}

func confirmationFor(order *models.Order, recipient string) notify.Confirmation {
	items := make([]notify.ConfirmationItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, notify.ConfirmationItem{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return notify.Confirmation{
		Recipient:   recipient,
		OrderNumber: order.OrderNumber,
		Items:       items,
		Subtotal:    order.Subtotal,
		Tax:         order.Tax,
		Total:       order.TotalAmount,
		PickupTime:  order.PickupTime,
		Token:       order.RedemptionToken,
	}
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var filter repository.OrderFilter
	if identity.IsAdmin() {
		filter.UserID = r.URL.Query().Get("user_id")
	} else {
		// Customers only ever see their own orders.
		filter.UserID = identity.UserID
	}
	if status := r.URL.Query().Get("status"); status != "" && status != "all" {
		filter.Status = models.OrderStatus(status)
	}

	orders, err := h.orders.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// QRCode renders the order's redemption token as a PNG for the detail view.
func (h *OrderHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	png, err := qr.Render(order.RedemptionToken)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *OrderHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	identity := identityFrom(r)

	order, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	if !identity.IsAdmin() && order.UserID != identity.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "access denied", nil)
		return nil, false
	}
	return order, true
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	order, err := h.orders.Transition(r.Context(), chi.URLParam(r, "id"), models.OrderStatus(req.Status))
	if err != nil {
		respondError(w, err)
		return
	}
	if order.Status == models.StatusCancelled {
		h.dropCachedStock(r)
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	order, removed, err := h.orders.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if order.Status == models.StatusCancelled {
		h.dropCachedStock(r)
	}

	if removed {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "order " + order.OrderNumber + " deleted",
		})
		return
	}

	// Deleting an open order is reinterpreted as cancellation.
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "order " + order.OrderNumber + " cancelled, stock restored",
		"order":   order,
	})
}
