package services

import (
	"fmt"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// DefaultMinFeeCents is the platform floor for per-lead fees.
const DefaultMinFeeCents int64 = 300

// FeeResolver returns the effective per-lead fee for a business/referrer
// pair. The floor is injected at construction, not read from a global.
type FeeResolver struct {
	minFeeCents int64
}

func NewFeeResolver(minFeeCents int64) *FeeResolver {
	if minFeeCents <= 0 {
		minFeeCents = DefaultMinFeeCents
	}
	return &FeeResolver{minFeeCents: minFeeCents}
}

// ResolveFee returns the link's custom fee when set, else the business
// default. A stored custom fee below the floor is ignored; it should never
// exist because ValidateCustomFee gates writes, but a stale row must not
// undercut the platform minimum.
func (r *FeeResolver) ResolveFee(business *models.Business, link *models.ReferrerLink) int64 {
	if link != nil && link.CustomFeeCents != nil && *link.CustomFeeCents >= r.minFeeCents {
		return *link.CustomFeeCents
	}
	return business.DefaultFeeCents
}

// ValidateCustomFee rejects overrides below the platform minimum. A nil fee
// (clear back to default) is always valid.
func (r *FeeResolver) ValidateCustomFee(feeCents *int64) error {
	if feeCents == nil {
		return nil
	}
	if *feeCents < r.minFeeCents {
		return fmt.Errorf("%w: %d < %d", models.ErrFeeTooLow, *feeCents, r.minFeeCents)
	}
	return nil
}

// MinFeeCents returns the platform floor.
func (r *FeeResolver) MinFeeCents() int64 {
	return r.minFeeCents
}
