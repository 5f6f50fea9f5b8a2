package handlers

import (
	"bakery-service/internal/models"
	"bakery-service/internal/repository"
	"net/http"
	"time"
)

type DashboardHandler struct {
	analytics         repository.AnalyticsRepository
	lowStockThreshold int
	defaultDays       int
}

func NewDashboardHandler(analytics repository.AnalyticsRepository, lowStockThreshold int) *DashboardHandler {
	return &DashboardHandler{
		analytics:         analytics,
		lowStockThreshold: lowStockThreshold,
		defaultDays:       30,
	}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.DashboardStats(r.Context(), h.lowStockThreshold)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Analytics serves per-product snapshot history when product_id is given,
// otherwise the closing-stock overview across the catalog.
func (h *DashboardHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDaysParam(r, h.defaultDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "days must be a positive integer", nil)
		return
	}

	period := analyticsPeriod(days)

	if productID := r.URL.Query().Get("product_id"); productID != "" {
		analytics, err := h.analytics.ProductAnalytics(r.Context(), productID, days)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"period":  period,
			"product": analytics,
		})
		return
	}

	overview, err := h.analytics.Overview(r.Context(), days)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":   period,
		"products": overview,
	})
}

func analyticsPeriod(days int) models.AnalyticsPeriod {
	end := repository.Midnight(time.Now())
	start := end.AddDate(0, 0, -days)
	return models.AnalyticsPeriod{
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
		Days:  days,
	}
}
