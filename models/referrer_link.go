package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferrerLink joins a business and a referrer. At most one link exists per
// (business, referrer) pair, enforced by a unique index. CustomFeeCents nil
// means "use the business default fee"; clearing a custom fee reverts to the
// default atomically.
type ReferrerLink struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	BusinessID   primitive.ObjectID `json:"businessId" bson:"businessId"`
	ReferrerID   primitive.ObjectID `json:"referrerId" bson:"referrerId"`
	ReferralCode string             `json:"referralCode" bson:"referralCode"`

	CustomFeeCents *int64 `json:"customFeeCents,omitempty" bson:"customFeeCents,omitempty"`
	// FeeHistory is an append-only audit trail of fee changes on this link.
	FeeHistory []FeeChange `json:"feeHistory,omitempty" bson:"feeHistory,omitempty"`

	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// FeeChange records one custom-fee update: who changed it, from what, to what.
// A nil cents value on either side means "business default".
type FeeChange struct {
	ChangedBy string    `json:"changedBy" bson:"changedBy"`
	FromCents *int64    `json:"fromCents,omitempty" bson:"fromCents,omitempty"`
	ToCents   *int64    `json:"toCents,omitempty" bson:"toCents,omitempty"`
	ChangedAt time.Time `json:"changedAt" bson:"changedAt"`
}

// CreateLinkRequest is the body for POST /api/links.
type CreateLinkRequest struct {
	BusinessID string `json:"businessId" validate:"required"`
	ReferrerID string `json:"referrerId" validate:"required"`
}

// SetCustomFeeRequest is the body for PUT /api/links/fee. A nil FeeCents
// clears the override back to the business default.
type SetCustomFeeRequest struct {
	BusinessID string `json:"businessId" validate:"required"`
	ReferrerID string `json:"referrerId" validate:"required"`
	FeeCents   *int64 `json:"feeCents"`
}

// SetCustomFeeResponse reports the fee now in effect for the link.
type SetCustomFeeResponse struct {
	EffectiveFeeCents int64 `json:"effectiveFeeCents"`
}
