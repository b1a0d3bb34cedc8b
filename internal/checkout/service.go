package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chilisaus/storefront-api/internal/cart"
	"github.com/chilisaus/storefront-api/internal/obs"
	"github.com/chilisaus/storefront-api/internal/payment"
	"github.com/chilisaus/storefront-api/internal/pricing"
)

// Input is the checkout request payload.
type Input struct {
	CartID  string `json:"cartId" validate:"required,uuid4"`
	Country string `json:"country" validate:"required,min=2,max=3"`
	Email   string `json:"email" validate:"omitempty,email"`
	Locale  string `json:"locale" validate:"omitempty,bcp47_language_tag"`
}

// Output is returned to the storefront so it can redirect to the hosted
// payment page.
type Output struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// Service builds hosted payment sessions from carts.
type Service struct {
	Carts            *cart.Service
	Estimator        pricing.Estimator
	Rates            pricing.RateTable
	Provider         payment.Provider
	Validate         *validator.Validate
	Currency         string
	AllowedCountries []string
	DefaultCountry   string
	SuccessURL       string
	CancelURL        string
	Logger           zerolog.Logger
}

// Create validates the input, prices the cart including shipping, and opens
// a hosted checkout session.
func (s *Service) Create(ctx context.Context, in Input) (Output, error) {
	if s == nil || s.Carts == nil || s.Provider == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if in.Country == "" {
		in.Country = s.DefaultCountry
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return Output{}, fmt.Errorf("invalid checkout input: %w: %w", cart.ErrInvalidInput, err)
		}
	}
	cartID, err := uuid.Parse(in.CartID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid cart id: %w", cart.ErrInvalidInput)
	}

	cartRow, err := s.Carts.GetCart(ctx, cartID)
	if err != nil {
		return Output{}, err
	}
	items, err := s.Carts.Store.ListItemsForQuote(ctx, cartRow.ID)
	if err != nil {
		return Output{}, err
	}
	if len(items) == 0 {
		return Output{}, fmt.Errorf("cart is empty: %w", cart.ErrInvalidInput)
	}

	lineItems := make([]pricing.LineItem, 0, len(items))
	sessionLines := make([]payment.SessionLine, 0, len(items)+1)
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
		sessionLines = append(sessionLines, payment.SessionLine{
			Name:           displayName(it),
			Qty:            it.Qty,
			UnitPriceCents: it.UnitPriceCents,
		})
		subtotal += it.SubtotalCents
	}

	weightKg := s.Estimator.PackageWeightKg(lineItems)
	zone := s.Rates.Zone(in.Country)
	shippingCents := s.Rates.Cost(in.Country, weightKg, subtotal)
	if shippingCents > 0 {
		sessionLines = append(sessionLines, payment.SessionLine{
			Name:           "Shipping",
			Qty:            1,
			UnitPriceCents: shippingCents,
		})
	}

	// The applied voucher is priced exactly like the cart preview, so the
	// hosted page charges the total the customer already saw. An ineligible
	// code yields no discount and is not carried to settlement.
	discountCents := s.Carts.Discount(ctx, cartRow, subtotal)
	metadata := map[string]string{"cartId": cartRow.ID.String()}
	if discountCents > 0 {
		metadata["voucher"] = *cartRow.AppliedVoucherCode
	}

	session, err := s.Provider.CreateSession(ctx, payment.SessionRequest{
		Currency:         s.Currency,
		Email:            strings.TrimSpace(in.Email),
		Locale:           strings.TrimSpace(in.Locale),
		Lines:            sessionLines,
		AllowedCountries: s.AllowedCountries,
		SuccessURL:       s.SuccessURL,
		CancelURL:        s.CancelURL,
		Metadata:         metadata,
		DiscountCents:    discountCents,
		AllowPromoCodes:  discountCents == 0,
	})
	if err != nil {
		s.countSession("error")
		return Output{}, fmt.Errorf("create payment session: %w", err)
	}
	s.countSession("ok")
	s.Logger.Info().
		Str("cart_id", cartRow.ID.String()).
		Str("session_id", session.ID).
		Str("zone", zone).
		Float64("weight_kg", weightKg).
		Int64("shipping_cents", shippingCents).
		Int64("discount_cents", discountCents).
		Msg("checkout session created")
	return Output{SessionID: session.ID, RedirectURL: session.URL}, nil
}

func (s *Service) countSession(result string) {
	if obs.CheckoutSessionTotal != nil {
		obs.CheckoutSessionTotal.WithLabelValues(result).Inc()
	}
}

// displayName appends the selected size for apparel lines so the payment
// page and the settled line items stay distinguishable.
func displayName(it cart.QuoteItem) string {
	if it.SelectedSize != nil && *it.SelectedSize != "" {
		return it.Name + " (" + *it.SelectedSize + ")"
	}
	return it.Name
}
