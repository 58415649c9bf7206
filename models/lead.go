// models/lead.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LeadStatus is the lead lifecycle state. PIN_ISSUED is the only
// non-terminal state a stored lead can be in; CONFIRMED and DISPUTED are
// terminal and never left.
type LeadStatus string

const (
	LeadPinIssued LeadStatus = "PIN_ISSUED"
	LeadConfirmed LeadStatus = "CONFIRMED"
	LeadDisputed  LeadStatus = "DISPUTED"
)

// SettlementStatus tracks whether commission settlement has run for a
// confirmed lead.
type SettlementStatus string

const (
	// SettlementNone applies to organic leads (no referrer link) and to leads
	// that are not yet confirmed.
	SettlementNone SettlementStatus = "NONE"
	SettlementDone SettlementStatus = "SETTLED"
	// SettlementPendingFunds means confirmation succeeded but the business
	// wallet could not cover the fee. Retried manually after a top-up.
	SettlementPendingFunds SettlementStatus = "PENDING_FUNDS"
)

// Lead is a consumer introduction submitted to a business. LinkID nil means
// the lead arrived with no referral code (organic); such leads never settle.
// PayoutCents is stamped exactly once, when the lead is confirmed with a
// referrer attached, and is immutable afterwards.
type Lead struct {
	ID         primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	BusinessID primitive.ObjectID  `json:"businessId" bson:"businessId"`
	LinkID     *primitive.ObjectID `json:"linkId,omitempty" bson:"linkId,omitempty"`

	ConsumerName  string `json:"consumerName" bson:"consumerName"`
	ConsumerPhone string `json:"consumerPhone" bson:"consumerPhone"`
	ConsumerEmail string `json:"consumerEmail,omitempty" bson:"consumerEmail,omitempty"`

	// PIN is a single-use 6-digit code, unique among the business's
	// unconfirmed leads, delivered to the business out of band.
	PIN    string     `json:"-" bson:"pin"`
	Status LeadStatus `json:"status" bson:"status"`

	PayoutCents *int64           `json:"payoutCents,omitempty" bson:"payoutCents,omitempty"`
	Settlement  SettlementStatus `json:"settlement" bson:"settlement"`

	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty" bson:"confirmedAt,omitempty"`
	DisputedAt  *time.Time `json:"disputedAt,omitempty" bson:"disputedAt,omitempty"`
	Archived    bool       `json:"archived" bson:"archived"`
}

// CreateLeadRequest is the body for POST /api/leads.
type CreateLeadRequest struct {
	BusinessID    string `json:"businessId" validate:"required"`
	ReferralCode  string `json:"referralCode,omitempty"`
	ConsumerName  string `json:"consumerName" validate:"required"`
	ConsumerPhone string `json:"consumerPhone" validate:"required"`
	ConsumerEmail string `json:"consumerEmail,omitempty" validate:"omitempty,email"`
}

// CreateLeadResponse carries the new lead id and the PIN the business must
// hand to the consumer.
type CreateLeadResponse struct {
	LeadID string `json:"leadId"`
	PIN    string `json:"pin"`
}

// ConfirmLeadRequest is the body for POST /api/leads/:id/confirm.
type ConfirmLeadRequest struct {
	PIN string `json:"pin" validate:"required,len=6,numeric"`
}

// ConfirmLeadResult is returned by the lifecycle on a successful (or
// idempotent repeat) confirmation.
type ConfirmLeadResult struct {
	Status      LeadStatus       `json:"status"`
	PayoutCents *int64           `json:"payoutCents,omitempty"`
	Settlement  SettlementStatus `json:"settlement"`
}
