// services/referrer_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/utils"
)

const linkCodeAttempts = 5

// ReferrerService covers the referrer-facing surface: stats, link creation
// and custom fee management.
type ReferrerService struct {
	store Store
	tiers *TierPolicy
	fees  *FeeResolver
}

func NewReferrerService(store Store, tiers *TierPolicy, fees *FeeResolver) *ReferrerService {
	return &ReferrerService{store: store, tiers: tiers, fees: fees}
}

// Stats reports the referrer's tier, balances and the threshold table, plus
// progress toward the next band.
func (s *ReferrerService) Stats(ctx context.Context, referrerID primitive.ObjectID) (*models.ReferrerStats, error) {
	referrer, err := s.store.GetReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	// The stored tier is a cache; report off the count so a stale cache can
	// never misreport a referrer's band.
	tier := s.tiers.TierFor(referrer.ConfirmedReferrals)
	stats := &models.ReferrerStats{
		ReferrerID:           referrer.ID,
		Tier:                 tier,
		SplitPercent:         s.tiers.SplitPercent(tier),
		ConfirmedReferrals:   referrer.ConfirmedReferrals,
		EarningsBalanceCents: referrer.EarningsBalanceCents,
		Thresholds:           s.tiers.Thresholds(),
	}

	if next, minCount, ok := s.tiers.Next(tier); ok {
		stats.NextTier = next
		stats.ReferralsToNext = minCount - referrer.ConfirmedReferrals
	}
	return stats, nil
}

// Link returns the link for a (business, referrer) pair.
func (s *ReferrerService) Link(ctx context.Context, businessID, referrerID primitive.ObjectID) (*models.ReferrerLink, error) {
	return s.store.GetLink(ctx, businessID, referrerID)
}

// CreateLink joins a referrer to a business with a fresh referral code. At
// most one link may exist per pair.
func (s *ReferrerService) CreateLink(ctx context.Context, businessID, referrerID primitive.ObjectID) (*models.ReferrerLink, error) {
	if _, err := s.store.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetReferrer(ctx, referrerID); err != nil {
		return nil, err
	}

	link := &models.ReferrerLink{
		ID:         primitive.NewObjectID(),
		BusinessID: businessID,
		ReferrerID: referrerID,
		Active:     true,
		CreatedAt:  time.Now(),
	}

	for attempt := 0; attempt < linkCodeAttempts; attempt++ {
		code, err := utils.GenerateLinkCode()
		if err != nil {
			return nil, err
		}
		link.ReferralCode = code

		err = s.store.InsertLink(ctx, link)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, models.ErrDuplicateLink) {
			return nil, err
		}
		// Retry only on a code collision; other failures surface.
		if !isDuplicateCode(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not generate a unique referral code after %d attempts", linkCodeAttempts)
}

// SetCustomFee sets or clears (nil) a link's fee override atomically and
// appends the change to the link's audit history. Returns the fee now in
// effect.
func (s *ReferrerService) SetCustomFee(ctx context.Context, businessID, referrerID primitive.ObjectID, feeCents *int64, actor string) (int64, error) {
	if err := s.fees.ValidateCustomFee(feeCents); err != nil {
		return 0, err
	}

	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return 0, err
	}
	current, err := s.store.GetLink(ctx, businessID, referrerID)
	if err != nil {
		return 0, err
	}

	change := models.FeeChange{
		ChangedBy: actor,
		FromCents: current.CustomFeeCents,
		ToCents:   feeCents,
		ChangedAt: time.Now(),
	}
	updated, err := s.store.UpdateCustomFee(ctx, businessID, referrerID, feeCents, change)
	if err != nil {
		return 0, err
	}

	return s.fees.ResolveFee(business, updated), nil
}

// isDuplicateCode reports whether an insert failed on the referral-code
// unique index. The store translates pair collisions to ErrDuplicateLink and
// leaves code collisions as raw duplicate-key errors.
func isDuplicateCode(err error) bool {
	if err == nil || errors.Is(err, models.ErrDuplicateLink) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "E11000") || strings.Contains(msg, "duplicate key")
}
