package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chilisaus/storefront-api/internal/common"
)

// AdminHandler exposes catalog management endpoints guarded by the admin key.
type AdminHandler struct {
	service *Service
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(service *Service) *AdminHandler {
	return &AdminHandler{service: service}
}

type productRequest struct {
	Slug              string     `json:"slug"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	PriceCents        int64      `json:"priceCents"`
	Category          string     `json:"category"`
	CapacityMl        *int       `json:"capacityMl"`
	WeightGrams       *int       `json:"weightGrams"`
	Sizes             []string   `json:"sizes"`
	Scoville          *int       `json:"scoville"`
	Stock             int        `json:"stock"`
	LowStockThreshold int        `json:"lowStockThreshold"`
	BrandID           *uuid.UUID `json:"brandId"`
	ImageURL          string     `json:"imageUrl"`
	Active            bool       `json:"active"`
}

func (r productRequest) toInput() ProductInput {
	return ProductInput{
		Slug:              r.Slug,
		Name:              r.Name,
		Description:       r.Description,
		PriceCents:        r.PriceCents,
		Category:          r.Category,
		CapacityMl:        r.CapacityMl,
		WeightGrams:       r.WeightGrams,
		Sizes:             r.Sizes,
		Scoville:          r.Scoville,
		Stock:             r.Stock,
		LowStockThreshold: r.LowStockThreshold,
		BrandID:           r.BrandID,
		ImageURL:          r.ImageURL,
		Active:            r.Active,
	}
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": product})
}

// UpdateProduct handles PUT /api/v1/admin/products/{id}.
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), id, req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// DeleteProduct handles DELETE /api/v1/admin/products/{id}.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type brandRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl"`
}

// CreateBrand handles POST /api/v1/admin/brands.
func (h *AdminHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req brandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	brand, err := h.service.CreateBrand(r.Context(), req.Slug, req.Name, req.Description, req.LogoURL)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": brand})
}
