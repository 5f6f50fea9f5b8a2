package api

import (
	"net/http"

	"bakery-service/internal/api/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Products  *handlers.ProductHandler
	Orders    *handlers.OrderHandler
	Scan      *handlers.ScanHandler
	Stock     *handlers.StockHandler
	Dashboard *handlers.DashboardHandler
}

// NewRouter wires the HTTP surface. The catalog is readable without a
// session; everything that writes or exposes customer data sits behind
// RequireAuth, and back-office routes behind RequireAdmin.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(handlers.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(handlers.WithIdentity)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/categories", h.Products.ListCategories)
	r.Get("/categories/{id}/products", h.Products.GetByCategory)
	r.Get("/products", h.Products.GetAll)
	r.Get("/products/{id}", h.Products.GetByID)

	r.Group(func(r chi.Router) {
		r.Use(handlers.RequireAuth)

		r.Post("/orders", h.Orders.Create)
		r.Get("/orders", h.Orders.List)
		r.Get("/orders/{id}", h.Orders.GetByID)
		r.Get("/orders/{id}/qrcode", h.Orders.QRCode)
	})

	r.Group(func(r chi.Router) {
		r.Use(handlers.RequireAdmin)

		r.Post("/categories", h.Products.CreateCategory)
		r.Post("/products", h.Products.Create)
		r.Put("/products/{id}", h.Products.Update)
		r.Delete("/products/{id}", h.Products.Delete)

		r.Patch("/orders/{id}/status", h.Orders.UpdateStatus)
		r.Delete("/orders/{id}", h.Orders.Delete)
		r.Post("/scan", h.Scan.Scan)

		r.Post("/stock/adjust", h.Stock.Adjust)
		r.Get("/stock/adjustments", h.Stock.ListAdjustments)
		r.Post("/stock/snapshot", h.Stock.Snapshot)
		r.Get("/stock/snapshots", h.Stock.ListSnapshots)
		r.Get("/stock/analytics", h.Dashboard.Analytics)

		r.Get("/dashboard/stats", h.Dashboard.Stats)
	})

	return r
}
