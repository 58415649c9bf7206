// services/store.go
package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// Store is the persistence boundary of the settlement engine. The production
// implementation lives in repositories (MongoDB); tests run against the
// in-memory implementation.
//
// Ledger mutations against a single owner are atomic with respect to
// concurrent callers: two simultaneous debits of 60 against a balance of 100
// yield exactly one success and one ErrInsufficientFunds. Multi-owner flows
// wrap their store calls in RunInTransaction.
type Store interface {
	// Owners
	GetBusiness(ctx context.Context, id primitive.ObjectID) (*models.Business, error)
	GetReferrer(ctx context.Context, id primitive.ObjectID) (*models.Referrer, error)
	// IncrementConfirmedReferrals bumps the lifetime count and returns the
	// new value so the caller can recompute the cached tier.
	IncrementConfirmedReferrals(ctx context.Context, referrerID primitive.ObjectID) (int64, error)
	SetReferrerTier(ctx context.Context, referrerID primitive.ObjectID, tier models.Tier) error

	// Referrer links
	InsertLink(ctx context.Context, link *models.ReferrerLink) error
	GetLink(ctx context.Context, businessID, referrerID primitive.ObjectID) (*models.ReferrerLink, error)
	GetLinkByID(ctx context.Context, id primitive.ObjectID) (*models.ReferrerLink, error)
	FindLinkByCode(ctx context.Context, code string) (*models.ReferrerLink, error)
	// UpdateCustomFee sets or clears (nil) the fee override in one atomic
	// update, appending the change to the link's fee history.
	UpdateCustomFee(ctx context.Context, businessID, referrerID primitive.ObjectID, feeCents *int64, change models.FeeChange) (*models.ReferrerLink, error)

	// Leads
	InsertLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id primitive.ObjectID) (*models.Lead, error)
	// ClaimLeadConfirmation transitions PIN_ISSUED -> CONFIRMED in a single
	// statement filtered on status and PIN. Returns false when the claim did
	// not apply (wrong PIN, already terminal, or lost a race).
	ClaimLeadConfirmation(ctx context.Context, id primitive.ObjectID, pin string, now time.Time) (bool, error)
	// StampLeadPayout sets payoutCents only if it is still nil.
	StampLeadPayout(ctx context.Context, id primitive.ObjectID, payoutCents int64) error
	SetLeadSettlement(ctx context.Context, id primitive.ObjectID, status models.SettlementStatus) error
	// ExpireLeads claims every PIN_ISSUED lead created before cutoff into
	// DISPUTED within the same statement, so it can never race a concurrent
	// confirmation into a double transition. Returns the number expired.
	ExpireLeads(ctx context.Context, cutoff, now time.Time) (int64, error)

	// Wallet ledger
	Credit(ctx context.Context, owner models.OwnerRef, amountCents int64, reason models.TxReason, ref models.TxRef) (int64, error)
	Debit(ctx context.Context, owner models.OwnerRef, amountCents int64, reason models.TxReason, ref models.TxRef) (int64, error)
	Balance(ctx context.Context, owner models.OwnerRef) (int64, error)
	Transactions(ctx context.Context, owner models.OwnerRef, limit int64) ([]models.WalletTransaction, error)
	// LedgerSum recomputes the balance from the transaction rows.
	LedgerSum(ctx context.Context, owner models.OwnerRef) (int64, error)
	FreezeLedger(ctx context.Context, owner models.OwnerRef) error
	ListOwners(ctx context.Context) ([]models.OwnerRef, error)

	// Bonuses and payment captures
	InsertBonus(ctx context.Context, bonus *models.Bonus) error
	FindBonusByIdempotencyKey(ctx context.Context, key string) (*models.Bonus, error)
	InsertCapture(ctx context.Context, capture *models.PaymentCapture) error
	GetCapture(ctx context.Context, intentRef string) (*models.PaymentCapture, error)
	SetCaptureStatus(ctx context.Context, intentRef string, status models.CaptureStatus, captureRef string) error
	MarkCaptureApplied(ctx context.Context, intentRef string) error

	// RunInTransaction executes fn within one transaction boundary; every
	// store call made with the ctx passed to fn commits or aborts together.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PaymentProvider captures funds from a business's stored payment
// instrument. The call is the engine's only human-perceptible suspension
// point and must honor the ctx deadline.
type PaymentProvider interface {
	Capture(ctx context.Context, req models.CaptureRequest) (*models.CaptureResult, error)
}

// Alerter surfaces operational alerts to humans. Implementations must not
// block or fail the calling money path.
type Alerter interface {
	Alert(alert models.OpsAlert)
}

// MultiAlerter fans an alert out to several sinks.
type MultiAlerter []Alerter

func (m MultiAlerter) Alert(alert models.OpsAlert) {
	for _, a := range m {
		if a != nil {
			a.Alert(alert)
		}
	}
}
