package voucher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chilisaus/storefront-api/internal/common"
)

// Querier captures the store methods the service requires.
type Querier interface {
	GetByCode(ctx context.Context, code string) (Voucher, error)
	List(ctx context.Context) ([]Voucher, error)
	Create(ctx context.Context, v Voucher) (Voucher, error)
	IncrementRedemption(ctx context.Context, code string) error
}

// Service evaluates voucher codes against cart subtotals and records
// redemptions on settlement.
type Service struct {
	Store Querier
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Evaluate performs a dry-run evaluation; it never consumes a redemption.
func (s *Service) Evaluate(ctx context.Context, code string, subtotalCents int64) (int64, error) {
	if s == nil || s.Store == nil {
		return 0, errors.New("voucher service not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, invalid("code is required", ErrNotEligible)
	}
	v, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotEligible) {
			return 0, invalid("unknown voucher code", err)
		}
		return 0, err
	}
	rule := v.Rule()
	if err := rule.Validate(s.now(), subtotalCents); err != nil {
		return 0, invalid(err.Error(), err)
	}
	return Compute(subtotalCents, rule), nil
}

// Redeem bumps the redemption counter for a settled order.
func (s *Service) Redeem(ctx context.Context, code string) error {
	if s == nil || s.Store == nil {
		return errors.New("voucher service not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	return s.Store.IncrementRedemption(ctx, code)
}

// CreateInput carries the admin-provided voucher fields.
type CreateInput struct {
	Code       string     `json:"code"`
	Kind       string     `json:"kind"`
	ValueCents int64      `json:"valueCents"`
	PercentBps *int32     `json:"percentBps"`
	MinSpend   int64      `json:"minSpendCents"`
	UsageLimit *int32     `json:"usageLimit"`
	ValidFrom  *time.Time `json:"validFrom"`
	ValidTo    *time.Time `json:"validTo"`
}

// Create validates and stores a new voucher.
func (s *Service) Create(ctx context.Context, in CreateInput) (Voucher, error) {
	if s == nil || s.Store == nil {
		return Voucher{}, errors.New("voucher service not configured")
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		return Voucher{}, invalid("code is required", nil)
	}
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	switch kind {
	case "percent":
		if in.PercentBps == nil || *in.PercentBps <= 0 || *in.PercentBps > 10000 {
			return Voucher{}, invalid("percentBps must be in (0, 10000]", nil)
		}
	case "fixed":
		if in.ValueCents <= 0 {
			return Voucher{}, invalid("valueCents must be positive", nil)
		}
	default:
		return Voucher{}, invalid("kind must be percent or fixed", nil)
	}
	if in.ValidFrom != nil && in.ValidTo != nil && in.ValidTo.Before(*in.ValidFrom) {
		return Voucher{}, invalid("validTo precedes validFrom", nil)
	}
	return s.Store.Create(ctx, Voucher{
		Code:       code,
		Kind:       kind,
		ValueCents: in.ValueCents,
		PercentBps: in.PercentBps,
		MinSpend:   in.MinSpend,
		UsageLimit: in.UsageLimit,
		ValidFrom:  in.ValidFrom,
		ValidTo:    in.ValidTo,
	})
}

// List returns all vouchers.
func (s *Service) List(ctx context.Context) ([]Voucher, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("voucher service not configured")
	}
	return s.Store.List(ctx)
}

func invalid(message string, err error) *common.AppError {
	if err == nil {
		err = fmt.Errorf("%s", message)
	}
	return &common.AppError{
		Code:       "VOUCHER_INVALID",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}
