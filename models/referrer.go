// models/referrer.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tier is the closed set of referrer classification bands. Lookups are keyed
// by this type, never by free strings, so adding a tier is a compile-time
// checked change.
type Tier string

const (
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierElite      Tier = "elite"
	TierAmbassador Tier = "ambassador"
)

// Referrer is an individual who introduces paying customers to businesses in
// exchange for a per-lead commission. Tier is a cached value derived from
// ConfirmedReferrals; it is recomputed whenever the count changes and never
// mutated independently. EarningsBalanceCents is cached off the ledger.
type Referrer struct {
	ID    primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name  string             `json:"name" bson:"name"`
	Email string             `json:"email" bson:"email"`
	Phone string             `json:"phone,omitempty" bson:"phone,omitempty"`
	// ABN is optional; its presence only affects tax withholding downstream,
	// it is not an engine invariant.
	ABN string `json:"abn,omitempty" bson:"abn,omitempty"`

	ConfirmedReferrals   int64 `json:"confirmedReferrals" bson:"confirmedReferrals"`
	Tier                 Tier  `json:"tier" bson:"tier"`
	EarningsBalanceCents int64 `json:"earningsBalanceCents" bson:"earningsBalanceCents"`
	LedgerFrozen         bool  `json:"ledgerFrozen" bson:"ledgerFrozen"`

	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ReferrerStats is the payload for GET /api/referrers/:id/stats.
type ReferrerStats struct {
	ReferrerID           primitive.ObjectID `json:"referrerId"`
	Tier                 Tier               `json:"tier"`
	SplitPercent         int                `json:"splitPercent"`
	ConfirmedReferrals   int64              `json:"confirmedReferrals"`
	EarningsBalanceCents int64              `json:"earningsBalanceCents"`
	Thresholds           TierThresholds     `json:"thresholds"`
	// NextTier is empty when the referrer is already at the top band.
	NextTier          Tier  `json:"nextTier,omitempty"`
	ReferralsToNext   int64 `json:"referralsToNext,omitempty"`
}

// TierThresholds are the stepped, non-overlapping band minimums over lifetime
// confirmed-referral count: starter [0, ProMin), pro [ProMin, EliteMin),
// elite [EliteMin, AmbassadorMin), ambassador [AmbassadorMin, inf).
type TierThresholds struct {
	ProMin        int64 `json:"proMin"`
	EliteMin      int64 `json:"eliteMin"`
	AmbassadorMin int64 `json:"ambassadorMin"`
}
