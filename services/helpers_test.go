package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/repositories"
)

// recordAlerter captures ops alerts for assertions.
type recordAlerter struct {
	mu     sync.Mutex
	alerts []models.OpsAlert
}

func (a *recordAlerter) Alert(alert models.OpsAlert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
}

func (a *recordAlerter) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	kinds := make([]string, 0, len(a.alerts))
	for _, alert := range a.alerts {
		kinds = append(kinds, alert.Kind)
	}
	return kinds
}

// engineFixture wires the full settlement engine onto an in-memory store
// with one seeded business, referrer and link.
type engineFixture struct {
	store      *repositories.MemStore
	alerts     *recordAlerter
	tiers      *TierPolicy
	fees       *FeeResolver
	wallet     *WalletService
	settlement *SettlementService
	leads      *LeadService
	referrers  *ReferrerService

	business *models.Business
	referrer *models.Referrer
	link     *models.ReferrerLink
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	store := repositories.NewMemStore()
	alerts := &recordAlerter{}

	tiers, err := NewTierPolicy(models.TierThresholds{ProMin: 6, EliteMin: 21, AmbassadorMin: 51},
		TierSplits{Starter: 50, Pro: 60, Elite: 70, Ambassador: 80})
	require.NoError(t, err)
	fees := NewFeeResolver(300)

	business := &models.Business{
		ID:              primitive.NewObjectID(),
		Name:            "Northside Plumbing",
		DefaultFeeCents: 500,
		Active:          true,
	}
	referrer := &models.Referrer{
		ID:     primitive.NewObjectID(),
		Name:   "Dana",
		Tier:   models.TierStarter,
		Active: true,
	}
	store.AddBusiness(business)
	store.AddReferrer(referrer)

	link := &models.ReferrerLink{
		ID:           primitive.NewObjectID(),
		BusinessID:   business.ID,
		ReferrerID:   referrer.ID,
		ReferralCode: "REF-TESTAA",
		Active:       true,
	}
	store.AddLink(link)

	settlement := NewSettlementService(store, fees, tiers, alerts)
	return &engineFixture{
		store:      store,
		alerts:     alerts,
		tiers:      tiers,
		fees:       fees,
		wallet:     NewWalletService(store, alerts),
		settlement: settlement,
		leads:      NewLeadService(store, settlement),
		referrers:  NewReferrerService(store, tiers, fees),
		business:   business,
		referrer:   referrer,
		link:       link,
	}
}

// fund credits the business wallet through the ledger so the cached balance
// and the transaction rows stay consistent.
func (f *engineFixture) fund(t *testing.T, amountCents int64) {
	t.Helper()
	_, err := f.wallet.Topup(context.Background(), f.business.ID, amountCents, "seed-topup")
	require.NoError(t, err)
}

func (f *engineFixture) businessBalance(t *testing.T) int64 {
	t.Helper()
	balance, err := f.store.Balance(context.Background(), models.BusinessOwner(f.business.ID))
	require.NoError(t, err)
	return balance
}

func (f *engineFixture) referrerBalance(t *testing.T) int64 {
	t.Helper()
	balance, err := f.store.Balance(context.Background(), models.ReferrerOwner(f.referrer.ID))
	require.NoError(t, err)
	return balance
}

func primitiveIDFromHex(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}

// createLead issues a referred lead and returns its id and PIN.
func (f *engineFixture) createLead(t *testing.T) (primitive.ObjectID, string) {
	t.Helper()
	resp, err := f.leads.Create(context.Background(), models.CreateLeadRequest{
		BusinessID:    f.business.ID.Hex(),
		ReferralCode:  f.link.ReferralCode,
		ConsumerName:  "Alex Consumer",
		ConsumerPhone: "+61400000001",
	})
	require.NoError(t, err)
	id, err := primitive.ObjectIDFromHex(resp.LeadID)
	require.NoError(t, err)
	return id, resp.PIN
}
