// repositories/memstore.go
package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// MemStore is an in-memory implementation of the services.Store interface,
// used by the test suite and for local development without MongoDB. Every
// operation holds the store mutex, which gives it the same per-owner
// serialization guarantee as the Mongo conditional updates: two concurrent
// debits can never both pass on the same funds.
//
// RunInTransaction executes the callback directly without rollback; tests
// that need failure-path atomicity assert on the Mongo semantics instead.
type MemStore struct {
	mu sync.Mutex

	businessDocs map[primitive.ObjectID]*models.Business
	referrerDocs map[primitive.ObjectID]*models.Referrer
	linkDocs     map[primitive.ObjectID]*models.ReferrerLink
	leadDocs     map[primitive.ObjectID]*models.Lead
	txRows       []models.WalletTransaction
	bonusDocs    map[primitive.ObjectID]*models.Bonus
	captureDocs  map[string]*models.PaymentCapture
}

func NewMemStore() *MemStore {
	return &MemStore{
		businessDocs: make(map[primitive.ObjectID]*models.Business),
		referrerDocs: make(map[primitive.ObjectID]*models.Referrer),
		linkDocs:     make(map[primitive.ObjectID]*models.ReferrerLink),
		leadDocs:     make(map[primitive.ObjectID]*models.Lead),
		bonusDocs:    make(map[primitive.ObjectID]*models.Bonus),
		captureDocs:  make(map[string]*models.PaymentCapture),
	}
}

// Seed helpers (not part of the Store interface)

func (s *MemStore) AddBusiness(b *models.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	cp := *b
	s.businessDocs[b.ID] = &cp
}

func (s *MemStore) AddReferrer(r *models.Referrer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	cp := *r
	s.referrerDocs[r.ID] = &cp
}

func (s *MemStore) AddLink(l *models.ReferrerLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	cp := *l
	s.linkDocs[l.ID] = &cp
}

// Owners

func (s *MemStore) GetBusiness(_ context.Context, id primitive.ObjectID) (*models.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businessDocs[id]
	if !ok {
		return nil, models.ErrBusinessNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemStore) GetReferrer(_ context.Context, id primitive.ObjectID) (*models.Referrer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.referrerDocs[id]
	if !ok {
		return nil, models.ErrReferrerNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) IncrementConfirmedReferrals(_ context.Context, referrerID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.referrerDocs[referrerID]
	if !ok {
		return 0, models.ErrReferrerNotFound
	}
	r.ConfirmedReferrals++
	r.UpdatedAt = time.Now()
	return r.ConfirmedReferrals, nil
}

func (s *MemStore) SetReferrerTier(_ context.Context, referrerID primitive.ObjectID, tier models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.referrerDocs[referrerID]
	if !ok {
		return models.ErrReferrerNotFound
	}
	r.Tier = tier
	r.UpdatedAt = time.Now()
	return nil
}

// Referrer links

func (s *MemStore) InsertLink(_ context.Context, link *models.ReferrerLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.linkDocs {
		if existing.BusinessID == link.BusinessID && existing.ReferrerID == link.ReferrerID {
			return models.ErrDuplicateLink
		}
		if existing.ReferralCode == link.ReferralCode {
			return fmt.Errorf("duplicate key: referralCode %s", link.ReferralCode)
		}
	}
	cp := *link
	s.linkDocs[link.ID] = &cp
	return nil
}

func (s *MemStore) GetLink(_ context.Context, businessID, referrerID primitive.ObjectID) (*models.ReferrerLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.linkDocs {
		if link.BusinessID == businessID && link.ReferrerID == referrerID {
			cp := *link
			return &cp, nil
		}
	}
	return nil, models.ErrLinkNotFound
}

func (s *MemStore) GetLinkByID(_ context.Context, id primitive.ObjectID) (*models.ReferrerLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.linkDocs[id]
	if !ok {
		return nil, models.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *MemStore) FindLinkByCode(_ context.Context, code string) (*models.ReferrerLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.linkDocs {
		if link.ReferralCode == code {
			cp := *link
			return &cp, nil
		}
	}
	return nil, models.ErrLinkNotFound
}

func (s *MemStore) UpdateCustomFee(_ context.Context, businessID, referrerID primitive.ObjectID, feeCents *int64, change models.FeeChange) (*models.ReferrerLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.linkDocs {
		if link.BusinessID == businessID && link.ReferrerID == referrerID {
			if feeCents == nil {
				link.CustomFeeCents = nil
			} else {
				v := *feeCents
				link.CustomFeeCents = &v
			}
			link.FeeHistory = append(link.FeeHistory, change)
			cp := *link
			return &cp, nil
		}
	}
	return nil, models.ErrLinkNotFound
}

// Leads

func (s *MemStore) InsertLead(_ context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.leadDocs {
		if existing.BusinessID == lead.BusinessID &&
			existing.Status == models.LeadPinIssued &&
			existing.PIN == lead.PIN {
			return models.ErrDuplicatePIN
		}
	}
	cp := *lead
	s.leadDocs[lead.ID] = &cp
	return nil
}

func (s *MemStore) GetLead(_ context.Context, id primitive.ObjectID) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leadDocs[id]
	if !ok {
		return nil, models.ErrLeadNotFound
	}
	cp := *lead
	if lead.PayoutCents != nil {
		v := *lead.PayoutCents
		cp.PayoutCents = &v
	}
	return &cp, nil
}

func (s *MemStore) ClaimLeadConfirmation(_ context.Context, id primitive.ObjectID, pin string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leadDocs[id]
	if !ok {
		return false, nil
	}
	if lead.Status != models.LeadPinIssued || lead.PIN != pin {
		return false, nil
	}
	lead.Status = models.LeadConfirmed
	lead.ConfirmedAt = &now
	lead.Archived = true
	return true, nil
}

func (s *MemStore) StampLeadPayout(_ context.Context, id primitive.ObjectID, payoutCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leadDocs[id]
	if !ok {
		return models.ErrLeadNotFound
	}
	if lead.PayoutCents != nil {
		if *lead.PayoutCents == payoutCents {
			return nil
		}
		return fmt.Errorf("payout for lead %s already stamped", id.Hex())
	}
	lead.PayoutCents = &payoutCents
	return nil
}

func (s *MemStore) SetLeadSettlement(_ context.Context, id primitive.ObjectID, status models.SettlementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leadDocs[id]
	if !ok {
		return models.ErrLeadNotFound
	}
	lead.Settlement = status
	return nil
}

func (s *MemStore) ExpireLeads(_ context.Context, cutoff, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired int64
	for _, lead := range s.leadDocs {
		if lead.Status == models.LeadPinIssued && lead.CreatedAt.Before(cutoff) {
			lead.Status = models.LeadDisputed
			lead.DisputedAt = &now
			lead.Archived = true
			expired++
		}
	}
	return expired, nil
}

// Wallet ledger

func (s *MemStore) Credit(_ context.Context, owner models.OwnerRef, amountCents int64, reason models.TxReason, ref models.TxRef) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", models.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyDeltaLocked(owner, amountCents, reason, ref, false)
}

func (s *MemStore) Debit(_ context.Context, owner models.OwnerRef, amountCents int64, reason models.TxReason, ref models.TxRef) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", models.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyDeltaLocked(owner, -amountCents, reason, ref, true)
}

func (s *MemStore) applyDeltaLocked(owner models.OwnerRef, delta int64, reason models.TxReason, ref models.TxRef, checkFunds bool) (int64, error) {
	var balance *int64
	var frozen, overdraft bool

	switch owner.Type {
	case models.OwnerBusiness:
		b, ok := s.businessDocs[owner.ID]
		if !ok {
			return 0, models.ErrBusinessNotFound
		}
		balance, frozen, overdraft = &b.WalletBalanceCents, b.LedgerFrozen, b.AllowOverdraft
	case models.OwnerReferrer:
		r, ok := s.referrerDocs[owner.ID]
		if !ok {
			return 0, models.ErrReferrerNotFound
		}
		balance, frozen, overdraft = &r.EarningsBalanceCents, r.LedgerFrozen, false
	default:
		return 0, fmt.Errorf("unknown owner type %q", owner.Type)
	}

	if frozen {
		return 0, models.ErrLedgerFrozen
	}
	if checkFunds && !overdraft && *balance+delta < 0 {
		return 0, models.ErrInsufficientFunds
	}

	*balance += delta
	s.txRows = append(s.txRows, models.WalletTransaction{
		ID:         primitive.NewObjectID(),
		OwnerType:  owner.Type,
		OwnerID:    owner.ID,
		DeltaCents: delta,
		Reason:     reason,
		Ref:        ref,
		CreatedAt:  time.Now(),
	})
	return *balance, nil
}

func (s *MemStore) Balance(_ context.Context, owner models.OwnerRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch owner.Type {
	case models.OwnerBusiness:
		if b, ok := s.businessDocs[owner.ID]; ok {
			return b.WalletBalanceCents, nil
		}
		return 0, models.ErrBusinessNotFound
	case models.OwnerReferrer:
		if r, ok := s.referrerDocs[owner.ID]; ok {
			return r.EarningsBalanceCents, nil
		}
		return 0, models.ErrReferrerNotFound
	default:
		return 0, fmt.Errorf("unknown owner type %q", owner.Type)
	}
}

func (s *MemStore) Transactions(_ context.Context, owner models.OwnerRef, limit int64) ([]models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txs []models.WalletTransaction
	for _, tx := range s.txRows {
		if tx.OwnerType == owner.Type && tx.OwnerID == owner.ID {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	if limit > 0 && int64(len(txs)) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (s *MemStore) LedgerSum(_ context.Context, owner models.OwnerRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, tx := range s.txRows {
		if tx.OwnerType == owner.Type && tx.OwnerID == owner.ID {
			sum += tx.DeltaCents
		}
	}
	return sum, nil
}

func (s *MemStore) FreezeLedger(_ context.Context, owner models.OwnerRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch owner.Type {
	case models.OwnerBusiness:
		if b, ok := s.businessDocs[owner.ID]; ok {
			b.LedgerFrozen = true
			return nil
		}
		return models.ErrBusinessNotFound
	case models.OwnerReferrer:
		if r, ok := s.referrerDocs[owner.ID]; ok {
			r.LedgerFrozen = true
			return nil
		}
		return models.ErrReferrerNotFound
	default:
		return fmt.Errorf("unknown owner type %q", owner.Type)
	}
}

// SetCachedBalance corrupts the cached balance directly, bypassing the
// ledger. Only used by reconciliation tests.
func (s *MemStore) SetCachedBalance(owner models.OwnerRef, cents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch owner.Type {
	case models.OwnerBusiness:
		if b, ok := s.businessDocs[owner.ID]; ok {
			b.WalletBalanceCents = cents
		}
	case models.OwnerReferrer:
		if r, ok := s.referrerDocs[owner.ID]; ok {
			r.EarningsBalanceCents = cents
		}
	}
}

func (s *MemStore) ListOwners(_ context.Context) ([]models.OwnerRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owners []models.OwnerRef
	for id := range s.businessDocs {
		owners = append(owners, models.BusinessOwner(id))
	}
	for id := range s.referrerDocs {
		owners = append(owners, models.ReferrerOwner(id))
	}
	return owners, nil
}

// Bonuses and captures

func (s *MemStore) InsertBonus(_ context.Context, bonus *models.Bonus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *bonus
	s.bonusDocs[bonus.ID] = &cp
	return nil
}

func (s *MemStore) FindBonusByIdempotencyKey(_ context.Context, key string) (*models.Bonus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bonus := range s.bonusDocs {
		if bonus.IdempotencyKey == key {
			cp := *bonus
			return &cp, nil
		}
	}
	return nil, models.ErrBonusNotFound
}

func (s *MemStore) InsertCapture(_ context.Context, capture *models.PaymentCapture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *capture
	s.captureDocs[capture.IntentRef] = &cp
	return nil
}

func (s *MemStore) GetCapture(_ context.Context, intentRef string) (*models.PaymentCapture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	capture, ok := s.captureDocs[intentRef]
	if !ok {
		return nil, models.ErrCaptureNotFound
	}
	cp := *capture
	return &cp, nil
}

func (s *MemStore) SetCaptureStatus(_ context.Context, intentRef string, status models.CaptureStatus, captureRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	capture, ok := s.captureDocs[intentRef]
	if !ok {
		return models.ErrCaptureNotFound
	}
	capture.Status = status
	if captureRef != "" {
		capture.CaptureRef = captureRef
	}
	capture.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) MarkCaptureApplied(_ context.Context, intentRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	capture, ok := s.captureDocs[intentRef]
	if !ok {
		return models.ErrCaptureNotFound
	}
	capture.Applied = true
	capture.UpdatedAt = time.Now()
	return nil
}

// RunInTransaction runs fn directly; see the type comment for semantics.
func (s *MemStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
