package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chilisaus/storefront-api/internal/resilience"
)

const stripeSignatureTolerance = 5 * time.Minute

// Stripe implements Provider against the Stripe Checkout API.
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
	Breaker       *resilience.Breaker
	MaxAttempts   int
	Now           func() time.Time
}

func (s Stripe) baseURL() string {
	if strings.TrimSpace(s.BaseURL) != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return "https://api.stripe.com"
}

func (s Stripe) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// do sends an API request through the retrying, breaker-guarded client.
func (s Stripe) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	client := resilience.HTTPClient{
		Client:      s.client(),
		Breaker:     s.Breaker,
		MaxAttempts: attempts,
		BaseBackoff: 200 * time.Millisecond,
		Jitter:      0.2,
	}
	return client.Do(ctx, req)
}

func (s Stripe) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateSession opens a hosted Checkout session.
func (s Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if strings.TrimSpace(s.SecretKey) == "" {
		return Session{}, errors.New("stripe: secret key not configured")
	}
	if len(req.Lines) == 0 {
		return Session{}, errors.New("stripe: at least one line item is required")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	if req.Email != "" {
		form.Set("customer_email", req.Email)
	}
	if req.Locale != "" {
		form.Set("locale", req.Locale)
	}
	currency := strings.ToLower(req.Currency)
	// Stripe rejects sessions that combine a preset discount with open
	// promotion code entry, so a carried voucher wins.
	if req.DiscountCents > 0 {
		couponID, err := s.createCoupon(ctx, currency, req.DiscountCents, req.Metadata["voucher"])
		if err != nil {
			return Session{}, fmt.Errorf("stripe: create discount coupon: %w", err)
		}
		form.Set("discounts[0][coupon]", couponID)
	} else if req.AllowPromoCodes {
		form.Set("allow_promotion_codes", "true")
	}
	for i, line := range req.Lines {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(line.Qty))
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(line.UnitPriceCents, 10))
		form.Set(prefix+"[price_data][product_data][name]", line.Name)
	}
	for i, country := range req.AllowedCountries {
		form.Set(fmt.Sprintf("shipping_address_collection[allowed_countries][%d]", i), strings.ToUpper(country))
	}
	for key, value := range req.Metadata {
		form.Set("metadata["+key+"]", value)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL()+"/v1/checkout/sessions",
		strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.do(ctx, httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create session: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Session{}, stripeAPIError(resp.StatusCode, body)
	}
	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return Session{}, fmt.Errorf("stripe: decode session: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return Session{}, errors.New("stripe: incomplete session response")
	}
	return session, nil
}

// createCoupon registers a single-use amount-off coupon so the hosted page
// shows the voucher deduction the cart preview promised.
func (s Stripe) createCoupon(ctx context.Context, currency string, amountOff int64, name string) (string, error) {
	form := url.Values{}
	form.Set("amount_off", strconv.FormatInt(amountOff, 10))
	form.Set("currency", currency)
	form.Set("duration", "once")
	form.Set("max_redemptions", "1")
	if name != "" {
		form.Set("name", name)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL()+"/v1/coupons",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.do(ctx, httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", stripeAPIError(resp.StatusCode, body)
	}
	var coupon struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &coupon); err != nil {
		return "", fmt.Errorf("stripe: decode coupon: %w", err)
	}
	if coupon.ID == "" {
		return "", errors.New("stripe: incomplete coupon response")
	}
	return coupon.ID, nil
}

// VerifyWebhook checks the Stripe-Signature header against the payload and
// decodes the event envelope.
func (s Stripe) VerifyWebhook(payload []byte, signatureHeader string) (Event, error) {
	if strings.TrimSpace(s.WebhookSecret) == "" {
		return Event{}, errors.New("stripe: webhook secret not configured")
	}
	timestamp, signatures, err := parseStripeSignature(signatureHeader)
	if err != nil {
		return Event{}, err
	}
	if age := s.now().Sub(time.Unix(timestamp, 0)); age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return Event{}, errors.New("stripe: signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	verified := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			verified = true
			break
		}
	}
	if !verified {
		return Event{}, errors.New("stripe: signature verification failed")
	}

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Event{}, fmt.Errorf("stripe: decode event: %w", err)
	}
	return Event{
		ID:        envelope.ID,
		Type:      envelope.Type,
		SessionID: envelope.Data.Object.ID,
		Raw:       json.RawMessage(payload),
	}, nil
}

// CheckoutDetails retrieves the settled session with its line items.
func (s Stripe) CheckoutDetails(ctx context.Context, sessionID string) (CheckoutDetails, error) {
	if strings.TrimSpace(sessionID) == "" {
		return CheckoutDetails{}, errors.New("stripe: session id is required")
	}
	endpoint := s.baseURL() + "/v1/checkout/sessions/" + url.PathEscape(sessionID) +
		"?expand[]=line_items&expand[]=total_details.breakdown"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckoutDetails{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.SecretKey)

	resp, err := s.do(ctx, httpReq)
	if err != nil {
		return CheckoutDetails{}, fmt.Errorf("stripe: fetch session: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CheckoutDetails{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return CheckoutDetails{}, stripeAPIError(resp.StatusCode, body)
	}

	var session struct {
		ID              string `json:"id"`
		Currency        string `json:"currency"`
		AmountTotal     int64  `json:"amount_total"`
		CustomerDetails struct {
			Email   string `json:"email"`
			Address struct {
				Country string `json:"country"`
			} `json:"address"`
		} `json:"customer_details"`
		Metadata     map[string]string `json:"metadata"`
		TotalDetails struct {
			AmountDiscount int64 `json:"amount_discount"`
			Breakdown      struct {
				Discounts []struct {
					Amount   int64 `json:"amount"`
					Discount struct {
						PromotionCode string `json:"promotion_code"`
					} `json:"discount"`
				} `json:"discounts"`
			} `json:"breakdown"`
		} `json:"total_details"`
		LineItems struct {
			Data []struct {
				Description    string `json:"description"`
				Quantity       int    `json:"quantity"`
				AmountSubtotal int64  `json:"amount_subtotal"`
				Price          struct {
					UnitAmount int64 `json:"unit_amount"`
				} `json:"price"`
			} `json:"data"`
		} `json:"line_items"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return CheckoutDetails{}, fmt.Errorf("stripe: decode session: %w", err)
	}

	details := CheckoutDetails{
		SessionID:        session.ID,
		Email:            session.CustomerDetails.Email,
		Country:          session.CustomerDetails.Address.Country,
		Currency:         strings.ToUpper(session.Currency),
		AmountTotalCents: session.AmountTotal,
		DiscountCents:    session.TotalDetails.AmountDiscount,
	}
	// A voucher only counts as used when Stripe reports the deduction. A
	// metadata code without a granted discount stays unredeemed.
	if session.TotalDetails.AmountDiscount > 0 {
		details.PromoCode = session.Metadata["voucher"]
		if details.PromoCode == "" {
			for _, d := range session.TotalDetails.Breakdown.Discounts {
				if code := d.Discount.PromotionCode; code != "" {
					details.PromoCode = code
					break
				}
			}
		}
	}
	for _, item := range session.LineItems.Data {
		details.Lines = append(details.Lines, DetailLine{
			Name:            item.Description,
			Qty:             item.Quantity,
			UnitAmountCents: item.Price.UnitAmount,
			SubtotalCents:   item.AmountSubtotal,
		})
	}
	return details, nil
}

func parseStripeSignature(header string) (int64, []string, error) {
	var (
		timestamp  int64
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, errors.New("stripe: malformed signature timestamp")
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, errors.New("stripe: missing signature elements")
	}
	return timestamp, signatures, nil
}

func stripeAPIError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Errorf("stripe: api error (%d): %s", status, payload.Error.Message)
	}
	return fmt.Errorf("stripe: api error (%d)", status)
}
