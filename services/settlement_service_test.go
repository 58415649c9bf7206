package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

func TestInsufficientFundsParksSettlement(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 100) // fee is 500, cannot cover
	id, pin := f.createLead(t)

	result, err := f.leads.Confirm(ctx, id, pin)
	require.NoError(t, err)
	require.Equal(t, models.LeadConfirmed, result.Status)
	require.Equal(t, models.SettlementPendingFunds, result.Settlement)
	require.NotNil(t, result.PayoutCents)
	require.Equal(t, int64(500), *result.PayoutCents)

	// No money moved.
	require.Equal(t, int64(100), f.businessBalance(t))
	require.Equal(t, int64(0), f.referrerBalance(t))

	// The confirmation still counted toward the referrer's tier progress and
	// the payout is stamped on the lead.
	referrer, err := f.store.GetReferrer(ctx, f.referrer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), referrer.ConfirmedReferrals)

	lead, err := f.store.GetLead(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, lead.PayoutCents)
	require.Equal(t, int64(500), *lead.PayoutCents)
	require.Equal(t, models.SettlementPendingFunds, lead.Settlement)

	require.Contains(t, f.alerts.kinds(), models.AlertSettlementPendingFunds)
}

func TestRetrySettlesAfterTopup(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 100)
	id, pin := f.createLead(t)

	_, err := f.leads.Confirm(ctx, id, pin)
	require.NoError(t, err)

	// Retry before the top-up fails the same way.
	_, err = f.settlement.Retry(ctx, id)
	require.True(t, errors.Is(err, models.ErrInsufficientFunds))

	f.fund(t, 1000)
	result, err := f.settlement.Retry(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.SettlementDone, result.Settlement)
	require.Equal(t, int64(500), *result.PayoutCents)

	require.Equal(t, int64(600), f.businessBalance(t)) // 100 + 1000 - 500
	require.Equal(t, int64(500), f.referrerBalance(t))

	// The retry settles the wallet pair only; the tier progress already
	// advanced at confirmation and must not double-count.
	referrer, err := f.store.GetReferrer(ctx, f.referrer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), referrer.ConfirmedReferrals)
}

func TestRetryRejectsNonPendingLeads(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 5000)
	id, pin := f.createLead(t)

	// Not confirmed yet.
	_, err := f.settlement.Retry(ctx, id)
	require.True(t, errors.Is(err, models.ErrValidation))

	// Settled normally, nothing pending.
	_, err = f.leads.Confirm(ctx, id, pin)
	require.NoError(t, err)
	_, err = f.settlement.Retry(ctx, id)
	require.True(t, errors.Is(err, models.ErrValidation))
}

func TestTierAdvancesAcrossProBoundary(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 100000)

	// Confirm six referred leads: count 5 keeps starter, count 6 crosses
	// into pro.
	for i := 0; i < 6; i++ {
		id, pin := f.createLead(t)
		_, err := f.leads.Confirm(ctx, id, pin)
		require.NoError(t, err)

		referrer, err := f.store.GetReferrer(ctx, f.referrer.ID)
		require.NoError(t, err)
		if referrer.ConfirmedReferrals < 6 {
			require.Equal(t, models.TierStarter, referrer.Tier)
		} else {
			require.Equal(t, models.TierPro, referrer.Tier)
		}
	}

	referrer, err := f.store.GetReferrer(ctx, f.referrer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(6), referrer.ConfirmedReferrals)
	require.Equal(t, models.TierPro, referrer.Tier)
}
