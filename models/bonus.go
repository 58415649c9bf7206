// models/bonus.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FundingSource records where bonus money came from.
type FundingSource string

const (
	FundingWallet FundingSource = "WALLET"
	FundingCard   FundingSource = "CARD"
	FundingMixed  FundingSource = "MIXED"
)

// BonusStatus is the outcome of an award attempt. INSUFFICIENT_FUNDS is a
// first-class dry-run result, not an error.
type BonusStatus string

const (
	BonusSuccess           BonusStatus = "SUCCESS"
	BonusInsufficientFunds BonusStatus = "INSUFFICIENT_FUNDS"
	BonusPaymentFailed     BonusStatus = "PAYMENT_FAILED"
)

// Bonus is a discretionary, business-initiated payment to a referrer outside
// normal settlement. IdempotencyKey is client-supplied and unique; a retried
// award with a known key returns the stored result instead of re-running.
type Bonus struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	BusinessID primitive.ObjectID `json:"businessId" bson:"businessId"`
	ReferrerID primitive.ObjectID `json:"referrerId" bson:"referrerId"`

	AmountCents   int64         `json:"amountCents" bson:"amountCents"`
	Reason        string        `json:"reason" bson:"reason"`
	FundingSource FundingSource `json:"fundingSource" bson:"fundingSource"`
	// CaptureRef is the provider-side reference when card funds were used.
	CaptureRef     string `json:"captureRef,omitempty" bson:"captureRef,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" bson:"idempotencyKey,omitempty"`

	Status    BonusStatus `json:"status" bson:"status"`
	CreatedAt time.Time   `json:"createdAt" bson:"createdAt"`
}

// AwardBonusRequest is the body for POST /api/bonuses.
type AwardBonusRequest struct {
	BusinessID      string `json:"businessId" validate:"required"`
	ReferrerID      string `json:"referrerId" validate:"required"`
	AmountCents     int64  `json:"amountCents" validate:"required,gt=0"`
	Reason          string `json:"reason" validate:"required"`
	AllowCardCharge bool   `json:"allowCardCharge"`
	IdempotencyKey  string `json:"idempotencyKey,omitempty"`
}

// BonusResult is the award outcome. ShortfallCents is set only on
// INSUFFICIENT_FUNDS and equals amount minus wallet balance at the time of
// the dry run.
type BonusResult struct {
	Status         BonusStatus   `json:"status"`
	BonusID        string        `json:"bonusId,omitempty"`
	FundingSource  FundingSource `json:"fundingSource,omitempty"`
	ShortfallCents int64         `json:"shortfallCents,omitempty"`
	// FailureDetail carries provider fault detail so the caller can retry
	// with a fresh idempotency key or prompt for another instrument.
	FailureDetail string `json:"failureDetail,omitempty"`
}

// PaymentCapture tracks one card-capture intent against the payment
// provider. IntentRef doubles as the provider idempotency key: a retried
// award that finds an approved, unapplied capture skips the provider call and
// goes straight to the ledger mutation.
type PaymentCapture struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	IntentRef   string             `json:"intentRef" bson:"intentRef"`
	BusinessID  primitive.ObjectID `json:"businessId" bson:"businessId"`
	AmountCents int64              `json:"amountCents" bson:"amountCents"`
	Status      CaptureStatus      `json:"status" bson:"status"`
	CaptureRef  string             `json:"captureRef,omitempty" bson:"captureRef,omitempty"`
	// Applied flips once the ledger mutation for this capture has landed.
	Applied   bool      `json:"applied" bson:"applied"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CaptureStatus is the provider-reported state of a capture intent.
type CaptureStatus string

const (
	CapturePending  CaptureStatus = "pending"
	CaptureApproved CaptureStatus = "approved"
	CaptureDeclined CaptureStatus = "declined"
	CaptureTimeout  CaptureStatus = "timeout"
)
