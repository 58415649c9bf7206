// services/bonus_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// DefaultCaptureTimeout bounds the external card-capture call; past it the
// orchestrator reports PAYMENT_FAILED instead of hanging the caller.
const DefaultCaptureTimeout = 30 * time.Second

// BonusService funds discretionary referrer bonuses with a two-phase
// protocol: pay from the wallet when it covers the amount, otherwise either
// report the shortfall (dry run) or capture the shortfall from the
// business's stored card and apply a TOPUP + BONUS transaction pair.
//
// Idempotency is server-side: the client-supplied key is both the bonus
// dedupe key and the provider intent reference, so a retried award never
// re-charges the card and never double-applies the ledger. The client only
// echoes the key back; it never decides whether a charge happened.
type BonusService struct {
	store          Store
	payments       PaymentProvider
	idem           *IdempotencyCache
	captureTimeout time.Duration
}

func NewBonusService(store Store, payments PaymentProvider, idem *IdempotencyCache) *BonusService {
	return &BonusService{
		store:          store,
		payments:       payments,
		idem:           idem,
		captureTimeout: DefaultCaptureTimeout,
	}
}

// Award executes the bonus request. INSUFFICIENT_FUNDS and PAYMENT_FAILED
// are first-class results, not errors; errors are reserved for validation
// and system faults.
func (s *BonusService) Award(ctx context.Context, req models.AwardBonusRequest) (*models.BonusResult, error) {
	businessID, err := primitive.ObjectIDFromHex(req.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid business id", models.ErrValidation)
	}
	referrerID, err := primitive.ObjectIDFromHex(req.ReferrerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid referrer id", models.ErrValidation)
	}
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: bonus amount must be positive", models.ErrValidation)
	}
	if req.Reason == "" {
		return nil, fmt.Errorf("%w: bonus reason is required", models.ErrValidation)
	}

	// Replay check before any work: a known key returns the stored outcome.
	if req.IdempotencyKey != "" {
		if prior, ok := s.priorResult(ctx, req.IdempotencyKey); ok {
			return prior, nil
		}
	}

	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	referrer, err := s.store.GetReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	if !referrer.Active {
		return nil, fmt.Errorf("%w: referrer is inactive", models.ErrValidation)
	}

	balance, err := s.store.Balance(ctx, models.BusinessOwner(businessID))
	if err != nil {
		return nil, err
	}

	if balance >= req.AmountCents || business.AllowOverdraft {
		result, err := s.payFromWallet(ctx, businessID, referrerID, req)
		if err == nil || !errors.Is(err, models.ErrInsufficientFunds) {
			return result, err
		}
		// Lost the balance race to a concurrent debit. Re-read and fall
		// through to the shortfall handling so allowCardCharge is honored
		// the same way it would have been on a fresh read.
		balance, err = s.store.Balance(ctx, models.BusinessOwner(businessID))
		if err != nil {
			return nil, err
		}
		if balance >= req.AmountCents {
			return s.payFromWallet(ctx, businessID, referrerID, req)
		}
	}

	if !req.AllowCardCharge {
		// Dry-run query, not an error, and deliberately not cached: the
		// caller may retry the same key with allowCardCharge=true.
		return &models.BonusResult{
			Status:         models.BonusInsufficientFunds,
			ShortfallCents: req.AmountCents - balance,
		}, nil
	}

	return s.payWithCard(ctx, business, referrerID, req, balance)
}

// payFromWallet funds the bonus entirely from the wallet balance.
func (s *BonusService) payFromWallet(ctx context.Context, businessID, referrerID primitive.ObjectID, req models.AwardBonusRequest) (*models.BonusResult, error) {
	bonus := s.newBonus(businessID, referrerID, req, models.FundingWallet, "")
	bonusRef := models.TxRef{Type: models.RefBonus, ID: bonus.ID}

	err := s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.store.Debit(txCtx, models.BusinessOwner(businessID), req.AmountCents, models.ReasonBonus, bonusRef); err != nil {
			return err
		}
		if _, err := s.store.Credit(txCtx, models.ReferrerOwner(referrerID), req.AmountCents, models.ReasonBonus, bonusRef); err != nil {
			return err
		}
		return s.store.InsertBonus(txCtx, bonus)
	})
	if err != nil {
		return nil, err
	}

	result := &models.BonusResult{
		Status:        models.BonusSuccess,
		BonusID:       bonus.ID.Hex(),
		FundingSource: models.FundingWallet,
	}
	s.rememberResult(ctx, req.IdempotencyKey, result)
	return result, nil
}

// payWithCard captures the shortfall externally, then applies the TOPUP
// credit for the captured portion immediately followed by the BONUS debit
// for the full amount and the referrer credit.
//
// The capture amount is fixed when the intent is first recorded. The ledger
// always settles against capture.AmountCents, never a recomputed shortfall:
// a retry after a crash must credit exactly what the card was charged, even
// if the wallet balance has drifted in between.
func (s *BonusService) payWithCard(ctx context.Context, business *models.Business, referrerID primitive.ObjectID, req models.AwardBonusRequest, balance int64) (*models.BonusResult, error) {
	intentRef := req.IdempotencyKey
	if intentRef == "" {
		intentRef = uuid.NewString()
	}

	capture, err := s.ensureCapture(ctx, intentRef, business.ID, req.AmountCents-balance)
	if err != nil {
		return nil, err
	}

	switch capture.Status {
	case models.CaptureApproved:
		if capture.Applied {
			// Ledger already landed for this intent on a previous attempt.
			if prior, ok := s.priorResult(ctx, req.IdempotencyKey); ok {
				return prior, nil
			}
			return &models.BonusResult{Status: models.BonusSuccess, FundingSource: models.FundingCard}, nil
		}
		// Crash-safe retry: the card was charged but the ledger was not
		// touched. Skip the provider and settle the recorded capture below.

	case models.CaptureDeclined, models.CaptureTimeout:
		// A spent intent is never re-charged; the caller retries with a
		// fresh idempotency key.
		return &models.BonusResult{
			Status:        models.BonusPaymentFailed,
			FailureDetail: fmt.Sprintf("capture %s previously %s", intentRef, capture.Status),
		}, nil
	}

	if balance+capture.AmountCents < req.AmountCents {
		// The wallet drained below what the recorded capture covers. Park
		// the award rather than inventing ledger money that was never
		// captured; a retry under the same key settles once the wallet
		// covers the rest.
		return &models.BonusResult{
			Status:         models.BonusInsufficientFunds,
			ShortfallCents: req.AmountCents - balance - capture.AmountCents,
		}, nil
	}

	if capture.Status == models.CapturePending {
		fail, ferr := s.callProvider(ctx, capture, business)
		if ferr != nil {
			return nil, ferr
		}
		if fail != nil {
			return fail, nil
		}
		capture.Status = models.CaptureApproved
	}

	return s.applyCardFunds(ctx, business.ID, referrerID, req, capture, balance)
}

// callProvider performs the external capture with an explicit timeout and
// records the provider's verdict on the capture intent. A non-nil result is
// a terminal PAYMENT_FAILED (decline or timeout); approval returns nil, nil
// with the capture reference recorded on the intent.
func (s *BonusService) callProvider(ctx context.Context, capture *models.PaymentCapture, business *models.Business) (*models.BonusResult, error) {
	capCtx, cancel := context.WithTimeout(ctx, s.captureTimeout)
	defer cancel()

	res, err := s.payments.Capture(capCtx, models.CaptureRequest{
		IntentRef:   capture.IntentRef,
		AmountCents: capture.AmountCents,
		Currency:    "AUD",
		CustomerRef: business.ID.Hex(),
		Invoice:     fmt.Sprintf("bonus shortfall for %s", business.Name),
	})

	switch {
	case err == nil && res.Approved:
		if uerr := s.store.SetCaptureStatus(ctx, capture.IntentRef, models.CaptureApproved, res.CaptureRef); uerr != nil {
			return nil, uerr
		}
		capture.CaptureRef = res.CaptureRef
		return nil, nil

	case errors.Is(err, models.ErrPaymentTimeout) || errors.Is(capCtx.Err(), context.DeadlineExceeded):
		if uerr := s.store.SetCaptureStatus(ctx, capture.IntentRef, models.CaptureTimeout, ""); uerr != nil {
			log.Printf("Failed to record capture timeout for %s: %v", capture.IntentRef, uerr)
		}
		return &models.BonusResult{
			Status:        models.BonusPaymentFailed,
			FailureDetail: "payment provider timed out",
		}, nil

	default:
		detail := "payment declined"
		if res != nil && res.Detail != "" {
			detail = res.Detail
		} else if err != nil && !errors.Is(err, models.ErrPaymentDeclined) {
			detail = err.Error()
		}
		if uerr := s.store.SetCaptureStatus(ctx, capture.IntentRef, models.CaptureDeclined, ""); uerr != nil {
			log.Printf("Failed to record capture decline for %s: %v", capture.IntentRef, uerr)
		}
		return &models.BonusResult{
			Status:        models.BonusPaymentFailed,
			FailureDetail: detail,
		}, nil
	}
}

// applyCardFunds runs the ledger mutation for an approved capture: TOPUP for
// exactly the captured amount, then the BONUS pair for the full amount.
func (s *BonusService) applyCardFunds(ctx context.Context, businessID, referrerID primitive.ObjectID, req models.AwardBonusRequest, capture *models.PaymentCapture, balance int64) (*models.BonusResult, error) {
	funding := models.FundingMixed
	if balance <= 0 {
		funding = models.FundingCard
	}

	bonus := s.newBonus(businessID, referrerID, req, funding, capture.CaptureRef)
	bonusRef := models.TxRef{Type: models.RefBonus, ID: bonus.ID}

	err := s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.store.Credit(txCtx, models.BusinessOwner(businessID), capture.AmountCents, models.ReasonTopup, models.TxRef{
			Type:     models.RefCapture,
			External: capture.CaptureRef,
		}); err != nil {
			return err
		}
		if _, err := s.store.Debit(txCtx, models.BusinessOwner(businessID), req.AmountCents, models.ReasonBonus, bonusRef); err != nil {
			return err
		}
		if _, err := s.store.Credit(txCtx, models.ReferrerOwner(referrerID), req.AmountCents, models.ReasonBonus, bonusRef); err != nil {
			return err
		}
		if err := s.store.InsertBonus(txCtx, bonus); err != nil {
			return err
		}
		return s.store.MarkCaptureApplied(txCtx, capture.IntentRef)
	})
	if err != nil {
		return nil, err
	}

	result := &models.BonusResult{
		Status:        models.BonusSuccess,
		BonusID:       bonus.ID.Hex(),
		FundingSource: funding,
	}
	s.rememberResult(ctx, req.IdempotencyKey, result)
	return result, nil
}

// ensureCapture returns the existing capture intent or records a fresh
// pending one.
func (s *BonusService) ensureCapture(ctx context.Context, intentRef string, businessID primitive.ObjectID, shortfall int64) (*models.PaymentCapture, error) {
	existing, err := s.store.GetCapture(ctx, intentRef)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrCaptureNotFound) {
		return nil, err
	}

	capture := &models.PaymentCapture{
		ID:          primitive.NewObjectID(),
		IntentRef:   intentRef,
		BusinessID:  businessID,
		AmountCents: shortfall,
		Status:      models.CapturePending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.store.InsertCapture(ctx, capture); err != nil {
		return nil, err
	}
	return capture, nil
}

// priorResult looks up a previously applied award by idempotency key, first
// in the redis fast-path, then in the authoritative bonus collection.
func (s *BonusService) priorResult(ctx context.Context, key string) (*models.BonusResult, bool) {
	if key == "" {
		return nil, false
	}
	if cached, ok := s.idem.Get(ctx, key); ok {
		return cached, true
	}
	bonus, err := s.store.FindBonusByIdempotencyKey(ctx, key)
	if err != nil || bonus == nil {
		return nil, false
	}
	return &models.BonusResult{
		Status:        bonus.Status,
		BonusID:       bonus.ID.Hex(),
		FundingSource: bonus.FundingSource,
	}, true
}

func (s *BonusService) rememberResult(ctx context.Context, key string, result *models.BonusResult) {
	if key != "" {
		s.idem.Put(ctx, key, result)
	}
}

func (s *BonusService) newBonus(businessID, referrerID primitive.ObjectID, req models.AwardBonusRequest, funding models.FundingSource, captureRef string) *models.Bonus {
	return &models.Bonus{
		ID:             primitive.NewObjectID(),
		BusinessID:     businessID,
		ReferrerID:     referrerID,
		AmountCents:    req.AmountCents,
		Reason:         req.Reason,
		FundingSource:  funding,
		CaptureRef:     captureRef,
		IdempotencyKey: req.IdempotencyKey,
		Status:         models.BonusSuccess,
		CreatedAt:      time.Now(),
	}
}

// SetCaptureTimeout overrides the provider deadline, for tests.
func (s *BonusService) SetCaptureTimeout(d time.Duration) {
	if d > 0 {
		s.captureTimeout = d
	}
}
