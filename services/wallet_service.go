// services/wallet_service.go
package services

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// WalletService is the externally-facing ledger API: top-ups, balances,
// transaction listings and reconciliation. Settlement and bonus flows use
// the store directly inside their own transaction boundaries.
type WalletService struct {
	store  Store
	alerts Alerter
}

func NewWalletService(store Store, alerts Alerter) *WalletService {
	if alerts == nil {
		alerts = MultiAlerter(nil)
	}
	return &WalletService{store: store, alerts: alerts}
}

// Topup credits a business wallet from an already-captured external payment
// and returns the authoritative new balance.
func (s *WalletService) Topup(ctx context.Context, businessID primitive.ObjectID, amountCents int64, paymentRef string) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: top-up amount must be positive", models.ErrValidation)
	}
	if paymentRef == "" {
		return 0, fmt.Errorf("%w: payment reference is required", models.ErrValidation)
	}

	owner := models.BusinessOwner(businessID)
	var newBalance int64
	err := s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		bal, err := s.store.Credit(txCtx, owner, amountCents, models.ReasonTopup, models.TxRef{
			Type:     models.RefCapture,
			External: paymentRef,
		})
		if err != nil {
			return err
		}
		newBalance = bal
		return nil
	})
	if err != nil {
		return 0, err
	}

	// A topped-up business may have settlements parked on PENDING_FUNDS;
	// retry stays a manual operation, but ops should know funds arrived.
	log.Printf("Wallet top-up: business=%s amount=%d newBalance=%d ref=%s",
		businessID.Hex(), amountCents, newBalance, paymentRef)
	return newBalance, nil
}

// Balance returns the cached balance for an owner.
func (s *WalletService) Balance(ctx context.Context, owner models.OwnerRef) (int64, error) {
	return s.store.Balance(ctx, owner)
}

// Transactions returns the most recent ledger rows for an owner.
func (s *WalletService) Transactions(ctx context.Context, owner models.OwnerRef, limit int64) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Transactions(ctx, owner, limit)
}

// Reconcile checks that the cached balance equals the sum of the owner's
// ledger rows. On a mismatch the owner's ledger is frozen and a
// ConsistencyFault is returned; the cached value is never overwritten.
func (s *WalletService) Reconcile(ctx context.Context, owner models.OwnerRef) error {
	cached, err := s.store.Balance(ctx, owner)
	if err != nil {
		return err
	}
	sum, err := s.store.LedgerSum(ctx, owner)
	if err != nil {
		return err
	}
	if cached == sum {
		return nil
	}

	fault := &models.ConsistencyFault{Owner: owner, CachedCents: cached, LedgerCents: sum}
	if err := s.store.FreezeLedger(ctx, owner); err != nil {
		log.Printf("Failed to freeze ledger for %s %s: %v", owner.Type, owner.ID.Hex(), err)
	}
	s.alerts.Alert(models.OpsAlert{
		Kind:    models.AlertConsistencyFault,
		Message: fault.Error(),
		Data:    fault,
	})
	return fault
}

// ReconcileAll sweeps every owner. Faulted owners are reported and frozen;
// the sweep keeps going so one bad ledger cannot hide another.
func (s *WalletService) ReconcileAll(ctx context.Context) (checked int, faults []error) {
	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		return 0, []error{err}
	}
	for _, owner := range owners {
		checked++
		if err := s.Reconcile(ctx, owner); err != nil {
			faults = append(faults, err)
		}
	}
	return checked, faults
}
