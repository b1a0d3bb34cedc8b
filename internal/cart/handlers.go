package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chilisaus/storefront-api/internal/common"
	"github.com/chilisaus/storefront-api/internal/obs"
	"github.com/chilisaus/storefront-api/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc       *Service
	Estimator pricing.Estimator
	Rates     pricing.RateTable
	TaxBps    int
	Currency  string
}

// Create creates or returns a guest cart identifier.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		AnonID string `json:"anonId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	anonID := strings.TrimSpace(payload.AnonID)
	if anonID == "" {
		anonID = uuid.NewString()
	}
	cart, err := h.Svc.EnsureCart(r.Context(), anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"cartId":  cart.ID,
			"anonId":  cart.AnonID,
			"voucher": cart.AppliedVoucherCode,
		},
	})
}

// Get returns cart contents and a pricing preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	cart, err := h.Svc.GetCart(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.Svc.Store.ListItems(r.Context(), cart.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart items", nil)
		return
	}
	if items == nil {
		items = []Item{}
	}
	pricingItems := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		pricingItems = append(pricingItems, pricing.Item{Qty: it.Qty, UnitPrice: it.UnitPriceCents})
	}
	var subtotal int64
	for _, it := range items {
		subtotal += it.SubtotalCents
	}
	discount := h.Svc.Discount(r.Context(), cart, subtotal)
	summary := pricing.Compute(pricingItems, discount, h.TaxBps, 0)
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":      cart.ID,
			"anonId":  cart.AnonID,
			"voucher": cart.AppliedVoucherCode,
			"items":   items,
			"pricing": map[string]any{
				"subtotal": summary.Subtotal,
				"discount": summary.Discount,
				"shipping": summary.Shipping,
				"net":      summary.Net,
				"tax":      summary.Tax,
				"total":    summary.Total,
			},
			"currency": h.Currency,
		},
	})
}

// AddItem adds or increments a cart line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload struct {
		ProductID string  `json:"productId"`
		Size      *string `json:"size"`
		Qty       int     `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	productID, err := uuid.Parse(strings.TrimSpace(payload.ProductID))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	if payload.Qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be positive", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), cartID, productID, payload.Size, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// UpdateItem updates the quantity for a cart line item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be positive", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// RemoveItem deletes a cart item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// ApplyVoucher applies a voucher to the cart.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	discount, err := h.Svc.ApplyVoucher(r.Context(), cartID, payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"discount": discount}})
}

// RemoveVoucher removes the applied voucher from the cart.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	if err := h.Svc.RemoveVoucher(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"voucher": nil}})
}

// QuoteShipping estimates package weight from the cart contents and prices
// delivery to the requested country.
func (h *Handler) QuoteShipping(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload struct {
		Country string `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	country := strings.ToUpper(strings.TrimSpace(payload.Country))
	if country == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "country is required", nil)
		return
	}
	cart, err := h.Svc.GetCart(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.Svc.Store.ListItemsForQuote(r.Context(), cart.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart items", nil)
		return
	}

	lineItems := make([]pricing.LineItem, 0, len(items))
	var subtotal int64
	for _, it := range items {
		lineItems = append(lineItems, pricing.LineItem{
			Name:         it.Name,
			Qty:          it.Qty,
			Category:     it.Category,
			CapacityMl:   it.CapacityMl,
			SelectedSize: it.SelectedSize,
			WeightGrams:  it.WeightGrams,
		})
		subtotal += it.SubtotalCents
	}
	weightKg := h.Estimator.PackageWeightKg(lineItems)
	zone := h.Rates.Zone(country)
	cost := h.Rates.Cost(country, weightKg, subtotal)
	if obs.ShippingQuoteTotal != nil {
		obs.ShippingQuoteTotal.WithLabelValues(zone).Inc()
	}

	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"country":       country,
			"zone":          zone,
			"weightKg":      weightKg,
			"shippingCents": cost,
			"currency":      h.Currency,
		},
	})
}

// QuoteTax returns the VAT portion of the current cart subtotal.
func (h *Handler) QuoteTax(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	cart, err := h.Svc.GetCart(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	subtotal, err := h.Svc.Subtotal(r.Context(), cart.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart items", nil)
		return
	}
	breakdown := pricing.ExtractTax(subtotal, h.TaxBps)
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
