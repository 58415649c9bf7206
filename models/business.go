package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Business is a trade business that receives leads and pays per-lead
// commissions out of its wallet. Businesses are never hard-deleted, only
// flagged inactive. WalletBalanceCents is a cached value: the ledger rows in
// walletTransactions are the source of truth.
type Business struct {
	ID              primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name            string             `json:"name" bson:"name"`
	Email           string             `json:"email" bson:"email"`
	Phone           string             `json:"phone,omitempty" bson:"phone,omitempty"`
	ABN             string             `json:"abn,omitempty" bson:"abn,omitempty"`
	ABNVerified     bool               `json:"abnVerified" bson:"abnVerified"`
	DefaultFeeCents int64              `json:"defaultFeeCents" bson:"defaultFeeCents"`

	WalletBalanceCents int64 `json:"walletBalanceCents" bson:"walletBalanceCents"`
	// AllowOverdraft lets authorized businesses debit below zero. Off by default.
	AllowOverdraft bool `json:"allowOverdraft" bson:"allowOverdraft"`
	// LedgerFrozen is set by reconciliation when cached balance and ledger sum
	// disagree. A frozen wallet refuses every mutation until cleared manually.
	LedgerFrozen bool `json:"ledgerFrozen" bson:"ledgerFrozen"`

	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
