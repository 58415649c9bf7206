package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// fakeCaptureClient scripts provider verdicts and counts calls.
type fakeCaptureClient struct {
	mu      sync.Mutex
	calls   int
	verdict string // "approve", "decline", "timeout"
}

func (f *fakeCaptureClient) Capture(ctx context.Context, req models.CaptureRequest) (*models.CaptureResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	switch f.verdict {
	case "approve":
		return &models.CaptureResult{Approved: true, CaptureRef: fmt.Sprintf("cap_%d", n)}, nil
	case "timeout":
		return nil, fmt.Errorf("%w: gateway unreachable", models.ErrPaymentTimeout)
	default:
		return &models.CaptureResult{Approved: false, Detail: "card declined"},
			fmt.Errorf("%w: card declined", models.ErrPaymentDeclined)
	}
}

func (f *fakeCaptureClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newBonusFixture(t *testing.T, verdict string) (*engineFixture, *BonusService, *fakeCaptureClient) {
	t.Helper()
	f := newEngineFixture(t)
	provider := &fakeCaptureClient{verdict: verdict}
	bonuses := NewBonusService(f.store, provider, nil)
	return f, bonuses, provider
}

func awardReq(f *engineFixture, amount int64, allowCard bool, key string) models.AwardBonusRequest {
	return models.AwardBonusRequest{
		BusinessID:      f.business.ID.Hex(),
		ReferrerID:      f.referrer.ID.Hex(),
		AmountCents:     amount,
		Reason:          "quarter target hit",
		AllowCardCharge: allowCard,
		IdempotencyKey:  key,
	}
}

func TestAwardFromWallet(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "approve")
	ctx := context.Background()
	f.fund(t, 10000)

	result, err := bonuses.Award(ctx, awardReq(f, 7000, false, "key-wallet-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusSuccess, result.Status)
	require.Equal(t, models.FundingWallet, result.FundingSource)
	require.NotEmpty(t, result.BonusID)

	require.Equal(t, int64(3000), f.businessBalance(t))
	require.Equal(t, int64(7000), f.referrerBalance(t))
	require.Zero(t, provider.callCount())
}

func TestAwardDryRunReportsShortfall(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "approve")
	ctx := context.Background()
	f.fund(t, 5000)

	result, err := bonuses.Award(ctx, awardReq(f, 7000, false, "key-dry-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusInsufficientFunds, result.Status)
	require.Equal(t, int64(2000), result.ShortfallCents)

	// Nothing moved and the card was never touched.
	require.Equal(t, int64(5000), f.businessBalance(t))
	require.Equal(t, int64(0), f.referrerBalance(t))
	require.Zero(t, provider.callCount())
}

func TestAwardCapturesShortfallFromCard(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "approve")
	ctx := context.Background()
	f.fund(t, 5000)

	result, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-card-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusSuccess, result.Status)
	require.Equal(t, models.FundingMixed, result.FundingSource)
	require.Equal(t, 1, provider.callCount())

	// 5000 + 2000 captured - 7000 bonus.
	require.Equal(t, int64(0), f.businessBalance(t))
	require.Equal(t, int64(7000), f.referrerBalance(t))

	// The business ledger shows exactly one TOPUP for the shortfall and one
	// BONUS debit for the full amount.
	txs, err := f.store.Transactions(ctx, models.BusinessOwner(f.business.ID), 10)
	require.NoError(t, err)
	var topups, bonusRows int
	for _, tx := range txs {
		switch tx.Reason {
		case models.ReasonTopup:
			if tx.Ref.Type == models.RefCapture && tx.DeltaCents == 2000 {
				topups++
			}
		case models.ReasonBonus:
			require.Equal(t, int64(-7000), tx.DeltaCents)
			bonusRows++
		}
	}
	require.Equal(t, 1, topups)
	require.Equal(t, 1, bonusRows)
}

func TestAwardEmptyWalletFundsFromCardOnly(t *testing.T) {
	f, bonuses, _ := newBonusFixture(t, "approve")
	ctx := context.Background()

	result, err := bonuses.Award(ctx, awardReq(f, 3000, true, "key-card-2"))
	require.NoError(t, err)
	require.Equal(t, models.BonusSuccess, result.Status)
	require.Equal(t, models.FundingCard, result.FundingSource)
	require.Equal(t, int64(0), f.businessBalance(t))
	require.Equal(t, int64(3000), f.referrerBalance(t))
}

func TestAwardDeclineLeavesNoTrace(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "decline")
	ctx := context.Background()
	f.fund(t, 5000)

	result, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-decline-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusPaymentFailed, result.Status)
	require.Contains(t, result.FailureDetail, "declined")
	require.Equal(t, 1, provider.callCount())

	require.Equal(t, int64(5000), f.businessBalance(t))
	require.Equal(t, int64(0), f.referrerBalance(t))

	// The spent intent is never re-charged under the same key.
	result, err = bonuses.Award(ctx, awardReq(f, 7000, true, "key-decline-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusPaymentFailed, result.Status)
	require.Contains(t, result.FailureDetail, "previously")
	require.Equal(t, 1, provider.callCount())

	// A fresh key may try again.
	result, err = bonuses.Award(ctx, awardReq(f, 7000, true, "key-decline-2"))
	require.NoError(t, err)
	require.Equal(t, models.BonusPaymentFailed, result.Status)
	require.Equal(t, 2, provider.callCount())
}

func TestAwardTimeoutFailsWithoutMutation(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "timeout")
	ctx := context.Background()
	f.fund(t, 5000)

	result, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-timeout-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusPaymentFailed, result.Status)
	require.Contains(t, result.FailureDetail, "timed out")
	require.Equal(t, 1, provider.callCount())

	require.Equal(t, int64(5000), f.businessBalance(t))
	require.Equal(t, int64(0), f.referrerBalance(t))

	capture, err := f.store.GetCapture(ctx, "key-timeout-1")
	require.NoError(t, err)
	require.Equal(t, models.CaptureTimeout, capture.Status)
	require.False(t, capture.Applied)
}

func TestAwardReplayReturnsPriorResult(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "approve")
	ctx := context.Background()
	f.fund(t, 5000)

	first, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-replay-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusSuccess, first.Status)

	second, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-replay-1"))
	require.NoError(t, err)
	require.Equal(t, first.BonusID, second.BonusID)

	// No second charge, no second ledger mutation.
	require.Equal(t, 1, provider.callCount())
	require.Equal(t, int64(0), f.businessBalance(t))
	require.Equal(t, int64(7000), f.referrerBalance(t))
}

func TestAwardResumesAfterCrashBetweenCaptureAndLedger(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "approve")
	ctx := context.Background()
	f.fund(t, 5000)

	// Simulate a crash after the provider approved but before the ledger
	// was touched: the capture intent exists as approved/unapplied.
	require.NoError(t, f.store.InsertCapture(ctx, &models.PaymentCapture{
		IntentRef:   "key-crash-1",
		BusinessID:  f.business.ID,
		AmountCents: 2000,
		Status:      models.CaptureApproved,
		CaptureRef:  "cap_recovered",
	}))

	result, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-crash-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusSuccess, result.Status)

	// The provider was not called again; the ledger landed exactly once.
	require.Zero(t, provider.callCount())
	require.Equal(t, int64(0), f.businessBalance(t))
	require.Equal(t, int64(7000), f.referrerBalance(t))

	capture, err := f.store.GetCapture(ctx, "key-crash-1")
	require.NoError(t, err)
	require.True(t, capture.Applied)
}

func TestAwardCrashRetrySettlesAgainstRecordedCapture(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "approve")
	ctx := context.Background()

	// The card was charged 2000 when the wallet held 5000, then the process
	// died before the ledger was touched. By the time the award is retried
	// the wallet has grown to 6000.
	f.fund(t, 6000)
	require.NoError(t, f.store.InsertCapture(ctx, &models.PaymentCapture{
		IntentRef:   "key-drift-up-1",
		BusinessID:  f.business.ID,
		AmountCents: 2000,
		Status:      models.CaptureApproved,
		CaptureRef:  "cap_recovered",
	}))

	result, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-drift-up-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusSuccess, result.Status)
	require.Zero(t, provider.callCount())

	// The TOPUP credits the 2000 the card was actually charged, not the
	// 1000 a fresh shortfall computation would give. 6000 + 2000 - 7000.
	require.Equal(t, int64(1000), f.businessBalance(t))
	require.Equal(t, int64(7000), f.referrerBalance(t))

	txs, err := f.store.Transactions(ctx, models.BusinessOwner(f.business.ID), 10)
	require.NoError(t, err)
	for _, tx := range txs {
		if tx.Reason == models.ReasonTopup && tx.Ref.Type == models.RefCapture {
			require.Equal(t, int64(2000), tx.DeltaCents)
		}
	}
}

func TestAwardCrashRetryParksWhenWalletDrained(t *testing.T) {
	f, bonuses, provider := newBonusFixture(t, "approve")
	ctx := context.Background()

	// Same crash, but other debits drained the wallet to 4000 before the
	// retry: 4000 + the 2000 charged no longer covers the 7000 bonus.
	f.fund(t, 4000)
	require.NoError(t, f.store.InsertCapture(ctx, &models.PaymentCapture{
		IntentRef:   "key-drift-down-1",
		BusinessID:  f.business.ID,
		AmountCents: 2000,
		Status:      models.CaptureApproved,
		CaptureRef:  "cap_recovered",
	}))

	result, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-drift-down-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusInsufficientFunds, result.Status)
	require.Equal(t, int64(1000), result.ShortfallCents)
	require.Zero(t, provider.callCount())

	// Nothing was applied: no TOPUP row beyond the captured amount, no
	// money moved, the capture stays parked.
	require.Equal(t, int64(4000), f.businessBalance(t))
	require.Equal(t, int64(0), f.referrerBalance(t))
	txs, err := f.store.Transactions(ctx, models.BusinessOwner(f.business.ID), 10)
	require.NoError(t, err)
	for _, tx := range txs {
		require.NotEqual(t, models.RefCapture, tx.Ref.Type)
	}
	capture, err := f.store.GetCapture(ctx, "key-drift-down-1")
	require.NoError(t, err)
	require.False(t, capture.Applied)

	// Once the wallet covers the remainder, the same key settles the
	// recorded capture exactly once.
	f.fund(t, 1000)
	result, err = bonuses.Award(ctx, awardReq(f, 7000, true, "key-drift-down-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusSuccess, result.Status)
	require.Zero(t, provider.callCount())
	require.Equal(t, int64(0), f.businessBalance(t))
	require.Equal(t, int64(7000), f.referrerBalance(t))
}

// contendedStore drains the business wallet just before the first bonus
// debit, reproducing a concurrent spend landing between the balance read and
// the wallet transaction.
type contendedStore struct {
	Store
	drainCents int64
	drained    bool
}

func (s *contendedStore) Debit(ctx context.Context, owner models.OwnerRef, amount int64, reason models.TxReason, ref models.TxRef) (int64, error) {
	if !s.drained && reason == models.ReasonBonus {
		s.drained = true
		if _, err := s.Store.Debit(ctx, owner, s.drainCents, models.ReasonBonus, models.TxRef{Type: models.RefManual}); err != nil {
			return 0, err
		}
	}
	return s.Store.Debit(ctx, owner, amount, reason, ref)
}

func TestAwardFallsBackToCardWhenWalletRaceLost(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 7000)

	provider := &fakeCaptureClient{verdict: "approve"}
	bonuses := NewBonusService(&contendedStore{Store: f.store, drainCents: 3000}, provider, nil)

	// The wallet covers 7000 at read time, but 3000 is spent concurrently
	// before the debit lands. With allowCardCharge set, the award falls
	// through to a card capture of the real shortfall.
	result, err := bonuses.Award(ctx, awardReq(f, 7000, true, "key-race-1"))
	require.NoError(t, err)
	require.Equal(t, models.BonusSuccess, result.Status)
	require.Equal(t, models.FundingMixed, result.FundingSource)
	require.Equal(t, 1, provider.callCount())

	// 7000 - 3000 drained + 3000 captured - 7000 bonus.
	require.Equal(t, int64(0), f.businessBalance(t))
	require.Equal(t, int64(7000), f.referrerBalance(t))
}

func TestAwardRaceLossWithoutCardReportsShortfall(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 7000)

	provider := &fakeCaptureClient{verdict: "approve"}
	bonuses := NewBonusService(&contendedStore{Store: f.store, drainCents: 3000}, provider, nil)

	result, err := bonuses.Award(ctx, awardReq(f, 7000, false, "key-race-2"))
	require.NoError(t, err)
	require.Equal(t, models.BonusInsufficientFunds, result.Status)
	require.Equal(t, int64(3000), result.ShortfallCents)
	require.Zero(t, provider.callCount())
	require.Equal(t, int64(0), f.referrerBalance(t))
}

func TestAwardValidation(t *testing.T) {
	f, bonuses, _ := newBonusFixture(t, "approve")
	ctx := context.Background()

	req := awardReq(f, 0, false, "")
	_, err := bonuses.Award(ctx, req)
	require.Error(t, err)

	req = awardReq(f, 1000, false, "")
	req.Reason = ""
	_, err = bonuses.Award(ctx, req)
	require.Error(t, err)

	req = awardReq(f, 1000, false, "")
	req.ReferrerID = "not-an-id"
	_, err = bonuses.Award(ctx, req)
	require.Error(t, err)
}
