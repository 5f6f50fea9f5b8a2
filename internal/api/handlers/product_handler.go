package handlers

import (
	"bakery-service/internal/models"
	"bakery-service/internal/repository"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ProductHandler struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
}

func NewProductHandler(products repository.ProductRepository, categories repository.CategoryRepository) *ProductHandler {
	return &ProductHandler{products: products, categories: categories}
}

type ProductRequest struct {
	Name        string  `json:"name" validate:"required,max=150"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Image       string  `json:"image"`
	Stock       int     `json:"stock" validate:"gte=0"`
	IsAvailable bool    `json:"is_available"`
	CategoryID  string  `json:"category_id" validate:"required"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetByCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	p := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Stock:       req.Stock,
		IsAvailable: req.IsAvailable,
		CategoryID:  req.CategoryID,
	}

	if err := h.products.Create(r.Context(), &p); err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Location", "/products/"+p.ProductID)
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	p := models.Product{
		ProductID:   chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Stock:       req.Stock,
		IsAvailable: req.IsAvailable,
		CategoryID:  req.CategoryID,
	}

	if err := h.products.Update(r.Context(), &p); err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.GetAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *ProductHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	c := models.Category{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
	}

	if err := h.categories.Create(r.Context(), &c); err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Location", "/categories/"+c.CategoryID)
	writeJSON(w, http.StatusCreated, c)
}

// parseDaysParam reads a ?days window with a default, shared by the stock
// listing and analytics endpoints.
func parseDaysParam(r *http.Request, fallback int) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return fallback, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, false
	}
	return days, true
}
