// models/errors.go
package models

import (
	"errors"
	"fmt"
)

// Expected business conditions and caller faults. Handlers branch on these
// with errors.Is and map them to HTTP responses; none of them indicate a
// system failure.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidPin        = errors.New("invalid pin")
	ErrAlreadyTerminal   = errors.New("lead already in a terminal state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrFeeTooLow         = errors.New("custom fee below platform minimum")
	ErrPaymentDeclined   = errors.New("payment declined by provider")
	ErrPaymentTimeout    = errors.New("payment provider timed out")
	ErrLedgerFrozen      = errors.New("ledger frozen pending reconciliation")

	ErrBusinessNotFound = errors.New("business not found")
	ErrReferrerNotFound = errors.New("referrer not found")
	ErrLinkNotFound     = errors.New("referrer link not found")
	ErrLeadNotFound     = errors.New("lead not found")
	ErrBonusNotFound    = errors.New("bonus not found")
	ErrCaptureNotFound  = errors.New("payment capture not found")

	// ErrDuplicatePIN is returned by the store when a generated PIN collides
	// with another unconfirmed lead of the same business. Lead creation
	// retries with a fresh PIN.
	ErrDuplicatePIN = errors.New("duplicate pin for business")

	// ErrDuplicateLink is returned when a (business, referrer) link already exists.
	ErrDuplicateLink = errors.New("referrer link already exists")
)

// ConsistencyFault reports that an owner's cached balance no longer matches
// the sum of its ledger rows. This is fatal for the owner: its ledger is
// frozen and every further mutation is refused until manual reconciliation.
// The cached balance is never silently overwritten.
type ConsistencyFault struct {
	Owner       OwnerRef
	CachedCents int64
	LedgerCents int64
}

func (f *ConsistencyFault) Error() string {
	return fmt.Sprintf("ledger inconsistency for %s %s: cached=%d ledger=%d",
		f.Owner.Type, f.Owner.ID.Hex(), f.CachedCents, f.LedgerCents)
}
