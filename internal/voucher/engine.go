package voucher

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotEligible is returned when no active voucher matches the code.
	ErrNotEligible = errors.New("voucher not eligible")
	// ErrUsageLimitReached indicates the voucher has exhausted its redemption quota.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
	// ErrVoucherInactive is returned before the voucher's active window opens.
	ErrVoucherInactive = errors.New("voucher not active")
	// ErrVoucherExpired is returned after the active window closed.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrMinimumSpendUnmet indicates the cart subtotal did not meet the requirement.
	ErrMinimumSpendUnmet = errors.New("voucher minimum spend not met")
)

// Rule captures the runtime constraints of a voucher.
type Rule struct {
	Code       string
	Kind       string
	ValueCents int64
	PercentBps *int32
	MinSpend   int64
	UsageLimit *int32
	UsedCount  int32
	ValidFrom  *time.Time
	ValidTo    *time.Time
}

// Validate ensures the rule can be applied at the provided instant and subtotal.
func (r Rule) Validate(now time.Time, subtotal int64) error {
	if subtotal < r.MinSpend {
		return ErrMinimumSpendUnmet
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrVoucherInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrVoucherExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// Compute determines the discount amount, clamped to the eligible subtotal.
func Compute(eligible int64, r Rule) int64 {
	if eligible <= 0 {
		return 0
	}
	discount := r.ValueCents
	if strings.EqualFold(r.Kind, "percent") {
		if r.PercentBps == nil || *r.PercentBps <= 0 {
			return 0
		}
		discount = (eligible * int64(*r.PercentBps)) / 10000
	}
	if discount > eligible {
		discount = eligible
	}
	if discount < 0 {
		return 0
	}
	return discount
}
