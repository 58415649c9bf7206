// services/settlement_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// SettlementService debits a business and credits its referrer when a lead
// is confirmed. Settlement runs exactly once per lead, synchronously on the
// CONFIRMED transition, and is never retried automatically: an insufficient
// business wallet parks the settlement on PENDING_FUNDS and raises an
// operational alert, and Retry is the manual trigger after a top-up.
type SettlementService struct {
	store  Store
	fees   *FeeResolver
	tiers  *TierPolicy
	alerts Alerter
}

func NewSettlementService(store Store, fees *FeeResolver, tiers *TierPolicy, alerts Alerter) *SettlementService {
	if alerts == nil {
		alerts = MultiAlerter(nil)
	}
	return &SettlementService{store: store, fees: fees, tiers: tiers, alerts: alerts}
}

// Settle runs commission settlement for a lead that just won the CONFIRMED
// claim. The lead must carry a referrer link; organic leads are the caller's
// no-op. The referrer's lifetime count and cached tier always advance (the
// lead is confirmed regardless of the business's billing state); the wallet
// pair only moves when the business can cover the fee.
func (s *SettlementService) Settle(ctx context.Context, lead *models.Lead) (*models.ConfirmLeadResult, error) {
	if lead.LinkID == nil {
		return nil, fmt.Errorf("settle called on organic lead %s", lead.ID.Hex())
	}

	link, err := s.store.GetLinkByID(ctx, *lead.LinkID)
	if err != nil {
		return nil, s.fail(lead, err)
	}
	business, err := s.store.GetBusiness(ctx, lead.BusinessID)
	if err != nil {
		return nil, s.fail(lead, err)
	}

	fee := s.fees.ResolveFee(business, link)
	leadRef := models.TxRef{Type: models.RefLead, ID: lead.ID}

	err = s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.store.Debit(txCtx, models.BusinessOwner(business.ID), fee, models.ReasonUnlockFee, leadRef); err != nil {
			return err
		}
		if _, err := s.store.Credit(txCtx, models.ReferrerOwner(link.ReferrerID), fee, models.ReasonCommissionPayout, leadRef); err != nil {
			return err
		}
		if err := s.advanceTier(txCtx, link.ReferrerID); err != nil {
			return err
		}
		if err := s.store.StampLeadPayout(txCtx, lead.ID, fee); err != nil {
			return err
		}
		return s.store.SetLeadSettlement(txCtx, lead.ID, models.SettlementDone)
	})

	switch {
	case err == nil:
		return &models.ConfirmLeadResult{
			Status:      models.LeadConfirmed,
			PayoutCents: &fee,
			Settlement:  models.SettlementDone,
		}, nil

	case errors.Is(err, models.ErrInsufficientFunds):
		// Confirmation still succeeds; the consumer and referrer experience
		// is not blocked by the business's billing state. The payout is
		// deterministic, so it is stamped now; only the wallet pair waits.
		if err := s.parkPendingFunds(ctx, lead, link.ReferrerID, fee); err != nil {
			return nil, s.fail(lead, err)
		}
		s.alerts.Alert(models.OpsAlert{
			Kind:    models.AlertSettlementPendingFunds,
			Message: fmt.Sprintf("settlement for lead %s pending funds: business %s cannot cover %d cents", lead.ID.Hex(), business.ID.Hex(), fee),
			Data:    map[string]interface{}{"leadId": lead.ID.Hex(), "businessId": business.ID.Hex(), "feeCents": fee},
		})
		return &models.ConfirmLeadResult{
			Status:      models.LeadConfirmed,
			PayoutCents: &fee,
			Settlement:  models.SettlementPendingFunds,
		}, nil

	default:
		return nil, s.fail(lead, err)
	}
}

// parkPendingFunds records everything about the settlement except the wallet
// pair: payout stamp, pending marker, and the tier advance the confirmation
// earned.
func (s *SettlementService) parkPendingFunds(ctx context.Context, lead *models.Lead, referrerID primitive.ObjectID, fee int64) error {
	return s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.advanceTier(txCtx, referrerID); err != nil {
			return err
		}
		if err := s.store.StampLeadPayout(txCtx, lead.ID, fee); err != nil {
			return err
		}
		return s.store.SetLeadSettlement(txCtx, lead.ID, models.SettlementPendingFunds)
	})
}

// Retry re-runs the wallet pair for a confirmed lead parked on
// PENDING_FUNDS. The count and tier already advanced at confirmation, so
// only the debit/credit and the settlement marker move here.
func (s *SettlementService) Retry(ctx context.Context, leadID primitive.ObjectID) (*models.ConfirmLeadResult, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status != models.LeadConfirmed || lead.Settlement != models.SettlementPendingFunds {
		return nil, fmt.Errorf("%w: lead %s is not pending funds", models.ErrValidation, leadID.Hex())
	}
	if lead.LinkID == nil || lead.PayoutCents == nil {
		return nil, fmt.Errorf("%w: lead %s has no payout to settle", models.ErrValidation, leadID.Hex())
	}

	link, err := s.store.GetLinkByID(ctx, *lead.LinkID)
	if err != nil {
		return nil, err
	}

	fee := *lead.PayoutCents
	leadRef := models.TxRef{Type: models.RefLead, ID: lead.ID}
	err = s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.store.Debit(txCtx, models.BusinessOwner(lead.BusinessID), fee, models.ReasonUnlockFee, leadRef); err != nil {
			return err
		}
		if _, err := s.store.Credit(txCtx, models.ReferrerOwner(link.ReferrerID), fee, models.ReasonCommissionPayout, leadRef); err != nil {
			return err
		}
		return s.store.SetLeadSettlement(txCtx, lead.ID, models.SettlementDone)
	})
	if err != nil {
		return nil, err
	}

	return &models.ConfirmLeadResult{
		Status:      models.LeadConfirmed,
		PayoutCents: &fee,
		Settlement:  models.SettlementDone,
	}, nil
}

func (s *SettlementService) advanceTier(ctx context.Context, referrerID primitive.ObjectID) error {
	count, err := s.store.IncrementConfirmedReferrals(ctx, referrerID)
	if err != nil {
		return err
	}
	return s.store.SetReferrerTier(ctx, referrerID, s.tiers.TierFor(count))
}

// fail raises the never-drop-silently alert and passes the error through.
func (s *SettlementService) fail(lead *models.Lead, err error) error {
	s.alerts.Alert(models.OpsAlert{
		Kind:    models.AlertSettlementFailed,
		Message: fmt.Sprintf("settlement for lead %s failed: %v", lead.ID.Hex(), err),
		Data:    map[string]interface{}{"leadId": lead.ID.Hex()},
	})
	return err
}
