package payment

import (
	"context"
	"encoding/json"
)

// SessionLine is a display line forwarded to the hosted payment page.
type SessionLine struct {
	Name           string
	Qty            int
	UnitPriceCents int64
}

// SessionRequest describes the hosted checkout session to create.
type SessionRequest struct {
	Currency         string
	Email            string
	Locale           string
	Lines            []SessionLine
	AllowedCountries []string
	SuccessURL       string
	CancelURL        string
	Metadata         map[string]string
	AllowPromoCodes  bool
	// DiscountCents is deducted from the session total via a single-use
	// coupon. When set, the hosted page does not offer promotion code
	// entry; providers reject the combination.
	DiscountCents int64
}

// Session is a created hosted checkout session.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is a webhook notification that passed signature verification.
type Event struct {
	ID        string
	Type      string
	SessionID string
	Raw       json.RawMessage
}

// DetailLine is a settled line item as reported by the provider.
type DetailLine struct {
	Name            string
	Qty             int
	UnitAmountCents int64
	SubtotalCents   int64
}

// CheckoutDetails is the settled state of a checkout session.
type CheckoutDetails struct {
	SessionID        string
	Email            string
	Country          string
	Currency         string
	AmountTotalCents int64
	// DiscountCents is the discount the provider actually granted on the
	// session, zero when nothing was deducted.
	DiscountCents int64
	// PromoCode identifies the voucher behind the granted discount. It is
	// empty when no discount was applied, even if a code rode along in the
	// session metadata.
	PromoCode string
	Lines     []DetailLine
}

// Provider abstracts the hosted payment service. Implementations own the
// provider-specific wire formats and credentials.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	VerifyWebhook(payload []byte, signatureHeader string) (Event, error)
	CheckoutDetails(ctx context.Context, sessionID string) (CheckoutDetails, error)
}
