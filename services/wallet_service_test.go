package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

func TestTopupReturnsAuthoritativeBalance(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	balance, err := f.wallet.Topup(ctx, f.business.ID, 5000, "pay-1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance)

	balance, err = f.wallet.Topup(ctx, f.business.ID, 2500, "pay-2")
	require.NoError(t, err)
	require.Equal(t, int64(7500), balance)

	// The cached balance equals the sum of the ledger rows.
	sum, err := f.store.LedgerSum(ctx, models.BusinessOwner(f.business.ID))
	require.NoError(t, err)
	require.Equal(t, int64(7500), sum)
}

func TestTopupRejectsBadInput(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.wallet.Topup(ctx, f.business.ID, 0, "pay-1")
	require.True(t, errors.Is(err, models.ErrValidation))

	_, err = f.wallet.Topup(ctx, f.business.ID, -100, "pay-1")
	require.True(t, errors.Is(err, models.ErrValidation))

	_, err = f.wallet.Topup(ctx, f.business.ID, 100, "")
	require.True(t, errors.Is(err, models.ErrValidation))
}

func TestOverDebitRefusedWithoutMutation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 100)

	owner := models.BusinessOwner(f.business.ID)
	_, err := f.store.Debit(ctx, owner, 200, models.ReasonUnlockFee, models.TxRef{Type: models.RefManual})
	require.True(t, errors.Is(err, models.ErrInsufficientFunds))

	require.Equal(t, int64(100), f.businessBalance(t))
	txs, err := f.store.Transactions(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1) // only the seed top-up
}

func TestConcurrentDebitsExactlyOneSucceeds(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 100)

	owner := models.BusinessOwner(f.business.ID)
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.Debit(ctx, owner, 60, models.ReasonUnlockFee, models.TxRef{Type: models.RefManual})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, insufficient int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, insufficient)
	require.Equal(t, int64(40), f.businessBalance(t))
}

func TestReconcileDetectsDriftAndFreezes(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 1000)

	owner := models.BusinessOwner(f.business.ID)
	require.NoError(t, f.wallet.Reconcile(ctx, owner))

	// Corrupt the cached balance behind the ledger's back.
	f.store.SetCachedBalance(owner, 9999)

	err := f.wallet.Reconcile(ctx, owner)
	var fault *models.ConsistencyFault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, int64(9999), fault.CachedCents)
	require.Equal(t, int64(1000), fault.LedgerCents)
	require.Contains(t, f.alerts.kinds(), models.AlertConsistencyFault)

	// The frozen ledger refuses further mutation.
	_, err = f.store.Credit(ctx, owner, 100, models.ReasonTopup, models.TxRef{Type: models.RefManual})
	require.True(t, errors.Is(err, models.ErrLedgerFrozen))
}

func TestReconcileAllKeepsSweepingPastFaults(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 1000)
	f.store.SetCachedBalance(models.BusinessOwner(f.business.ID), 1)

	checked, faults := f.wallet.ReconcileAll(ctx)
	require.Equal(t, 2, checked) // business + referrer
	require.Len(t, faults, 1)
}

func TestTransactionsLimitClamp(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fund(t, 100)
	f.fund(t, 100)
	f.fund(t, 100)

	owner := models.BusinessOwner(f.business.ID)
	txs, err := f.wallet.Transactions(ctx, owner, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	// Zero and out-of-range limits fall back to the default page size.
	txs, err = f.wallet.Transactions(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
}
