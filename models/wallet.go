// models/wallet.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OwnerType identifies which side of the marketplace a wallet belongs to.
type OwnerType string

const (
	OwnerBusiness OwnerType = "business"
	OwnerReferrer OwnerType = "referrer"
)

// OwnerRef identifies a single wallet owner. Both owner kinds share one
// ledger operation set.
type OwnerRef struct {
	Type OwnerType          `json:"type" bson:"type"`
	ID   primitive.ObjectID `json:"id" bson:"id"`
}

func BusinessOwner(id primitive.ObjectID) OwnerRef {
	return OwnerRef{Type: OwnerBusiness, ID: id}
}

func ReferrerOwner(id primitive.ObjectID) OwnerRef {
	return OwnerRef{Type: OwnerReferrer, ID: id}
}

// TxReason is the closed set of ledger reason codes.
type TxReason string

const (
	ReasonUnlockFee        TxReason = "UNLOCK_FEE"
	ReasonCommissionPayout TxReason = "COMMISSION_PAYOUT"
	ReasonBonus            TxReason = "BONUS"
	ReasonTopup            TxReason = "TOPUP"
	ReasonRefund           TxReason = "REFUND"
)

// TxRefType identifies what a ledger row points back to.
type TxRefType string

const (
	RefLead    TxRefType = "lead"
	RefBonus   TxRefType = "bonus"
	RefCapture TxRefType = "capture"
	RefManual  TxRefType = "manual"
)

// TxRef links a ledger row to the record that triggered it.
type TxRef struct {
	Type TxRefType          `json:"type" bson:"type"`
	ID   primitive.ObjectID `json:"id,omitempty" bson:"id,omitempty"`
	// External holds a provider-side reference (e.g. a payment capture id)
	// when the trigger is not one of our own documents.
	External string `json:"external,omitempty" bson:"external,omitempty"`
}

// WalletTransaction is one append-only ledger row. Rows are immutable once
// written; corrections are made via new offsetting rows, never edits. The
// cached balance on the owner document is always reconstructible as the sum
// of its rows.
type WalletTransaction struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerType  OwnerType          `json:"ownerType" bson:"ownerType"`
	OwnerID    primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	DeltaCents int64              `json:"deltaCents" bson:"deltaCents"`
	Reason     TxReason           `json:"reason" bson:"reason"`
	Ref        TxRef              `json:"ref" bson:"ref"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// TopupRequest is the body for POST /api/wallet/topup.
type TopupRequest struct {
	AmountCents int64  `json:"amountCents" validate:"required,gt=0"`
	PaymentRef  string `json:"paymentRef" validate:"required"`
}

// TopupResponse reports the authoritative post-mutation balance, never a
// client-side estimate.
type TopupResponse struct {
	NewBalanceCents int64 `json:"newBalanceCents"`
}
