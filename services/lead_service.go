// services/lead_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/utils"
)

// DefaultExpiryWindow is how long a lead may sit in PIN_ISSUED before the
// sweep disputes it.
const DefaultExpiryWindow = 30 * 24 * time.Hour

// pinAttempts bounds the retry loop on a PIN collision within a business.
const pinAttempts = 5

// LeadService drives the lead lifecycle: creation with PIN issuance,
// PIN-verified confirmation with synchronous settlement, and the periodic
// dispute sweep for stale unconfirmed leads.
type LeadService struct {
	store        Store
	settlement   *SettlementService
	expiryWindow time.Duration
}

func NewLeadService(store Store, settlement *SettlementService) *LeadService {
	return &LeadService{
		store:        store,
		settlement:   settlement,
		expiryWindow: DefaultExpiryWindow,
	}
}

// Create validates the consumer fields, resolves the optional referral code
// to an active link of the given business, issues a PIN unique among the
// business's unconfirmed leads, and stores the lead in PIN_ISSUED. The
// returned PIN is a delivery obligation to the business, out of engine scope.
func (s *LeadService) Create(ctx context.Context, req models.CreateLeadRequest) (*models.CreateLeadResponse, error) {
	businessID, err := primitive.ObjectIDFromHex(req.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid business id", models.ErrValidation)
	}

	name := utils.SanitizeInput(req.ConsumerName)
	if name == "" {
		return nil, fmt.Errorf("%w: consumer name is required", models.ErrValidation)
	}
	phone, err := utils.SanitizePhone(req.ConsumerPhone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	email := ""
	if req.ConsumerEmail != "" {
		email, err = utils.SanitizeEmail(req.ConsumerEmail)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
	}

	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !business.Active {
		return nil, fmt.Errorf("%w: business is inactive", models.ErrValidation)
	}

	// A lead may arrive with no referral code (direct/organic). Such leads
	// never settle.
	var linkID *primitive.ObjectID
	if req.ReferralCode != "" {
		link, err := s.store.FindLinkByCode(ctx, req.ReferralCode)
		if err != nil {
			return nil, err
		}
		if link.BusinessID != businessID {
			return nil, fmt.Errorf("%w: referral code belongs to another business", models.ErrValidation)
		}
		if !link.Active {
			return nil, fmt.Errorf("%w: referral link is inactive", models.ErrValidation)
		}
		linkID = &link.ID
	}

	lead := &models.Lead{
		ID:            primitive.NewObjectID(),
		BusinessID:    businessID,
		LinkID:        linkID,
		ConsumerName:  name,
		ConsumerPhone: phone,
		ConsumerEmail: email,
		Status:        models.LeadPinIssued,
		Settlement:    models.SettlementNone,
		CreatedAt:     time.Now(),
	}

	// The store's partial unique index rejects a PIN already issued to an
	// unconfirmed lead of the same business; retry with a fresh PIN.
	for attempt := 0; attempt < pinAttempts; attempt++ {
		pin, err := utils.GenerateLeadPIN()
		if err != nil {
			return nil, err
		}
		lead.PIN = pin

		err = s.store.InsertLead(ctx, lead)
		if err == nil {
			return &models.CreateLeadResponse{LeadID: lead.ID.Hex(), PIN: pin}, nil
		}
		if !errors.Is(err, models.ErrDuplicatePIN) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not issue a unique pin for business %s after %d attempts", businessID.Hex(), pinAttempts)
}

// Confirm verifies the PIN and transitions the lead to CONFIRMED, running
// commission settlement synchronously when a referrer link is attached.
//
// Repeating a confirmation with the correct PIN after success is a no-op
// returning the original result; it never produces a second settlement. The
// CONFIRMED claim is a single conditional statement, so a concurrent expiry
// sweep and a confirm can never both apply.
func (s *LeadService) Confirm(ctx context.Context, leadID primitive.ObjectID, pin string) (*models.ConfirmLeadResult, error) {
	if !utils.IsValidPIN(pin) {
		return nil, fmt.Errorf("%w: pin must be six digits", models.ErrValidation)
	}

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	switch lead.Status {
	case models.LeadConfirmed:
		if lead.PIN != pin {
			return nil, models.ErrInvalidPin
		}
		// Idempotent repeat: same payout, no new settlement.
		return &models.ConfirmLeadResult{
			Status:      lead.Status,
			PayoutCents: lead.PayoutCents,
			Settlement:  lead.Settlement,
		}, nil

	case models.LeadDisputed:
		return nil, models.ErrAlreadyTerminal

	case models.LeadPinIssued:
		if lead.PIN != pin {
			return nil, models.ErrInvalidPin
		}
	default:
		return nil, fmt.Errorf("lead %s in unknown status %q", leadID.Hex(), lead.Status)
	}

	claimed, err := s.store.ClaimLeadConfirmation(ctx, leadID, pin, time.Now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost a race: either another confirm won (idempotent success) or
		// the expiry sweep disputed the lead first.
		lead, err = s.store.GetLead(ctx, leadID)
		if err != nil {
			return nil, err
		}
		if lead.Status == models.LeadConfirmed {
			return &models.ConfirmLeadResult{
				Status:      lead.Status,
				PayoutCents: lead.PayoutCents,
				Settlement:  lead.Settlement,
			}, nil
		}
		return nil, models.ErrAlreadyTerminal
	}

	if lead.LinkID == nil {
		// Organic lead: no referrer, no wallet mutation, payout stays unset.
		return &models.ConfirmLeadResult{
			Status:     models.LeadConfirmed,
			Settlement: models.SettlementNone,
		}, nil
	}

	return s.settlement.Settle(ctx, lead)
}

// ExpireUnconfirmed disputes every lead that has sat in PIN_ISSUED beyond
// the expiry window. The claim happens inside the update statement itself,
// so it is safe to run concurrently with confirmations; whichever transition
// wins, the other is rejected by the status filter.
func (s *LeadService) ExpireUnconfirmed(ctx context.Context, now time.Time) (int64, error) {
	return s.store.ExpireLeads(ctx, now.Add(-s.expiryWindow), now)
}

// SetExpiryWindow overrides the 30-day default, for tests and staging.
func (s *LeadService) SetExpiryWindow(window time.Duration) {
	if window > 0 {
		s.expiryWindow = window
	}
}
