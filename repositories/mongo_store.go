// repositories/mongo_store.go
package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// MongoStore is the production persistence layer. Per-owner atomicity for
// wallet mutations comes from single-statement conditional updates on the
// owner document; multi-owner flows join a session transaction through
// RunInTransaction.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	if dbName == "" {
		dbName = "traderefer"
	}
	return &MongoStore{client: client, db: client.Database(dbName)}
}

func (s *MongoStore) businesses() *mongo.Collection   { return s.db.Collection("businesses") }
func (s *MongoStore) referrers() *mongo.Collection    { return s.db.Collection("referrers") }
func (s *MongoStore) links() *mongo.Collection        { return s.db.Collection("referrerLinks") }
func (s *MongoStore) leads() *mongo.Collection        { return s.db.Collection("leads") }
func (s *MongoStore) transactions() *mongo.Collection { return s.db.Collection("walletTransactions") }
func (s *MongoStore) bonuses() *mongo.Collection      { return s.db.Collection("bonuses") }
func (s *MongoStore) captures() *mongo.Collection     { return s.db.Collection("paymentCaptures") }

// ownerTarget maps an owner kind to its collection and cached balance field.
func (s *MongoStore) ownerTarget(ownerType models.OwnerType) (*mongo.Collection, string, error) {
	switch ownerType {
	case models.OwnerBusiness:
		return s.businesses(), "walletBalanceCents", nil
	case models.OwnerReferrer:
		return s.referrers(), "earningsBalanceCents", nil
	default:
		return nil, "", fmt.Errorf("unknown owner type %q", ownerType)
	}
}

func (s *MongoStore) notFound(ownerType models.OwnerType) error {
	if ownerType == models.OwnerBusiness {
		return models.ErrBusinessNotFound
	}
	return models.ErrReferrerNotFound
}

// Owners

func (s *MongoStore) GetBusiness(ctx context.Context, id primitive.ObjectID) (*models.Business, error) {
	var business models.Business
	err := s.businesses().FindOne(ctx, bson.M{"_id": id}).Decode(&business)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrBusinessNotFound
	}
	if err != nil {
		return nil, err
	}
	return &business, nil
}

func (s *MongoStore) GetReferrer(ctx context.Context, id primitive.ObjectID) (*models.Referrer, error) {
	var referrer models.Referrer
	err := s.referrers().FindOne(ctx, bson.M{"_id": id}).Decode(&referrer)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrReferrerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &referrer, nil
}

func (s *MongoStore) IncrementConfirmedReferrals(ctx context.Context, referrerID primitive.ObjectID) (int64, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var referrer models.Referrer
	err := s.referrers().FindOneAndUpdate(ctx,
		bson.M{"_id": referrerID},
		bson.M{
			"$inc": bson.M{"confirmedReferrals": 1},
			"$set": bson.M{"updatedAt": time.Now()},
		}, opts).Decode(&referrer)
	if err == mongo.ErrNoDocuments {
		return 0, models.ErrReferrerNotFound
	}
	if err != nil {
		return 0, err
	}
	return referrer.ConfirmedReferrals, nil
}

func (s *MongoStore) SetReferrerTier(ctx context.Context, referrerID primitive.ObjectID, tier models.Tier) error {
	res, err := s.referrers().UpdateByID(ctx, referrerID, bson.M{
		"$set": bson.M{"tier": tier, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrReferrerNotFound
	}
	return nil
}

// Referrer links

func (s *MongoStore) InsertLink(ctx context.Context, link *models.ReferrerLink) error {
	_, err := s.links().InsertOne(ctx, link)
	if mongo.IsDuplicateKeyError(err) {
		// The pair index and the code index can both fire; only the pair
		// collision is a business-level duplicate.
		if strings.Contains(err.Error(), "businessId") {
			return models.ErrDuplicateLink
		}
	}
	return err
}

func (s *MongoStore) GetLink(ctx context.Context, businessID, referrerID primitive.ObjectID) (*models.ReferrerLink, error) {
	var link models.ReferrerLink
	err := s.links().FindOne(ctx, bson.M{"businessId": businessID, "referrerId": referrerID}).Decode(&link)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *MongoStore) GetLinkByID(ctx context.Context, id primitive.ObjectID) (*models.ReferrerLink, error) {
	var link models.ReferrerLink
	err := s.links().FindOne(ctx, bson.M{"_id": id}).Decode(&link)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *MongoStore) FindLinkByCode(ctx context.Context, code string) (*models.ReferrerLink, error) {
	var link models.ReferrerLink
	err := s.links().FindOne(ctx, bson.M{"referralCode": code}).Decode(&link)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *MongoStore) UpdateCustomFee(ctx context.Context, businessID, referrerID primitive.ObjectID, feeCents *int64, change models.FeeChange) (*models.ReferrerLink, error) {
	update := bson.M{"$push": bson.M{"feeHistory": change}}
	if feeCents == nil {
		update["$unset"] = bson.M{"customFeeCents": ""}
	} else {
		update["$set"] = bson.M{"customFeeCents": *feeCents}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var link models.ReferrerLink
	err := s.links().FindOneAndUpdate(ctx,
		bson.M{"businessId": businessID, "referrerId": referrerID},
		update, opts).Decode(&link)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Leads

func (s *MongoStore) InsertLead(ctx context.Context, lead *models.Lead) error {
	_, err := s.leads().InsertOne(ctx, lead)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicatePIN
	}
	return err
}

func (s *MongoStore) GetLead(ctx context.Context, id primitive.ObjectID) (*models.Lead, error) {
	var lead models.Lead
	err := s.leads().FindOne(ctx, bson.M{"_id": id}).Decode(&lead)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *MongoStore) ClaimLeadConfirmation(ctx context.Context, id primitive.ObjectID, pin string, now time.Time) (bool, error) {
	// Status and PIN checked inside the statement: a concurrent expiry sweep
	// or second confirmation can never both win.
	res, err := s.leads().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.LeadPinIssued, "pin": pin},
		bson.M{"$set": bson.M{
			"status":      models.LeadConfirmed,
			"confirmedAt": now,
			"archived":    true,
		}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) StampLeadPayout(ctx context.Context, id primitive.ObjectID, payoutCents int64) error {
	res, err := s.leads().UpdateOne(ctx,
		bson.M{"_id": id, "payoutCents": nil},
		bson.M{"$set": bson.M{"payoutCents": payoutCents}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// The payout is immutable once written; a repeat stamp of the same value
	// is a no-op, anything else is a fault.
	lead, err := s.GetLead(ctx, id)
	if err != nil {
		return err
	}
	if lead.PayoutCents != nil && *lead.PayoutCents == payoutCents {
		return nil
	}
	return fmt.Errorf("payout for lead %s already stamped", id.Hex())
}

func (s *MongoStore) SetLeadSettlement(ctx context.Context, id primitive.ObjectID, status models.SettlementStatus) error {
	res, err := s.leads().UpdateByID(ctx, id, bson.M{"$set": bson.M{"settlement": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrLeadNotFound
	}
	return nil
}

func (s *MongoStore) ExpireLeads(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := s.leads().UpdateMany(ctx,
		bson.M{"status": models.LeadPinIssued, "createdAt": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{
			"status":     models.LeadDisputed,
			"disputedAt": now,
			"archived":   true,
		}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Wallet ledger

func (s *MongoStore) Credit(ctx context.Context, owner models.OwnerRef, amountCents int64, reason models.TxReason, ref models.TxRef) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", models.ErrValidation)
	}
	coll, balField, err := s.ownerTarget(owner.Type)
	if err != nil {
		return 0, err
	}

	newBalance, err := s.applyBalanceChange(ctx, coll, balField, bson.M{
		"_id":          owner.ID,
		"ledgerFrozen": bson.M{"$ne": true},
	}, amountCents, owner)
	if err != nil {
		return 0, err
	}

	if err := s.appendTransaction(ctx, owner, amountCents, reason, ref); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *MongoStore) Debit(ctx context.Context, owner models.OwnerRef, amountCents int64, reason models.TxReason, ref models.TxRef) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", models.ErrValidation)
	}
	coll, balField, err := s.ownerTarget(owner.Type)
	if err != nil {
		return 0, err
	}

	// The balance check lives inside the update filter, so two concurrent
	// debits against the same owner can never both pass on the same funds.
	filter := bson.M{
		"_id":          owner.ID,
		"ledgerFrozen": bson.M{"$ne": true},
		"$or": []bson.M{
			{balField: bson.M{"$gte": amountCents}},
			{"allowOverdraft": true},
		},
	}
	newBalance, err := s.applyBalanceChange(ctx, coll, balField, filter, -amountCents, owner)
	if err != nil {
		return 0, err
	}

	if err := s.appendTransaction(ctx, owner, -amountCents, reason, ref); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// applyBalanceChange runs the conditional $inc and decodes the new cached
// balance. A non-matching filter is disambiguated into not-found, frozen or
// insufficient funds.
func (s *MongoStore) applyBalanceChange(ctx context.Context, coll *mongo.Collection, balField string, filter bson.M, delta int64, owner models.OwnerRef) (int64, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bson.M
	err := coll.FindOneAndUpdate(ctx, filter,
		bson.M{
			"$inc": bson.M{balField: delta},
			"$set": bson.M{"updatedAt": time.Now()},
		}, opts).Decode(&doc)

	if err == mongo.ErrNoDocuments {
		var existing bson.M
		ferr := coll.FindOne(ctx, bson.M{"_id": owner.ID}).Decode(&existing)
		if ferr == mongo.ErrNoDocuments {
			return 0, s.notFound(owner.Type)
		}
		if ferr != nil {
			return 0, ferr
		}
		if frozen, _ := existing["ledgerFrozen"].(bool); frozen {
			return 0, models.ErrLedgerFrozen
		}
		return 0, models.ErrInsufficientFunds
	}
	if err != nil {
		return 0, err
	}
	return bsonInt64(doc[balField]), nil
}

func (s *MongoStore) appendTransaction(ctx context.Context, owner models.OwnerRef, delta int64, reason models.TxReason, ref models.TxRef) error {
	_, err := s.transactions().InsertOne(ctx, models.WalletTransaction{
		ID:         primitive.NewObjectID(),
		OwnerType:  owner.Type,
		OwnerID:    owner.ID,
		DeltaCents: delta,
		Reason:     reason,
		Ref:        ref,
		CreatedAt:  time.Now(),
	})
	return err
}

func (s *MongoStore) Balance(ctx context.Context, owner models.OwnerRef) (int64, error) {
	coll, balField, err := s.ownerTarget(owner.Type)
	if err != nil {
		return 0, err
	}
	var doc bson.M
	ferr := coll.FindOne(ctx, bson.M{"_id": owner.ID}).Decode(&doc)
	if ferr == mongo.ErrNoDocuments {
		return 0, s.notFound(owner.Type)
	}
	if ferr != nil {
		return 0, ferr
	}
	return bsonInt64(doc[balField]), nil
}

func (s *MongoStore) Transactions(ctx context.Context, owner models.OwnerRef, limit int64) ([]models.WalletTransaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cursor, err := s.transactions().Find(ctx, bson.M{
		"ownerType": owner.Type,
		"ownerId":   owner.ID,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txs []models.WalletTransaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *MongoStore) LedgerSum(ctx context.Context, owner models.OwnerRef) (int64, error) {
	cursor, err := s.transactions().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ownerType": owner.Type, "ownerId": owner.ID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$deltaCents"}}}},
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return bsonInt64(results[0]["total"]), nil
}

func (s *MongoStore) FreezeLedger(ctx context.Context, owner models.OwnerRef) error {
	coll, _, err := s.ownerTarget(owner.Type)
	if err != nil {
		return err
	}
	res, err := coll.UpdateByID(ctx, owner.ID, bson.M{
		"$set": bson.M{"ledgerFrozen": true, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.notFound(owner.Type)
	}
	return nil
}

func (s *MongoStore) ListOwners(ctx context.Context) ([]models.OwnerRef, error) {
	var owners []models.OwnerRef

	for _, target := range []struct {
		coll      *mongo.Collection
		ownerType models.OwnerType
	}{
		{s.businesses(), models.OwnerBusiness},
		{s.referrers(), models.OwnerReferrer},
	} {
		cursor, err := target.coll.Find(ctx, bson.M{},
			options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			return nil, err
		}
		var docs []bson.M
		if err := cursor.All(ctx, &docs); err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if id, ok := doc["_id"].(primitive.ObjectID); ok {
				owners = append(owners, models.OwnerRef{Type: target.ownerType, ID: id})
			}
		}
	}
	return owners, nil
}

// Bonuses and captures

func (s *MongoStore) InsertBonus(ctx context.Context, bonus *models.Bonus) error {
	_, err := s.bonuses().InsertOne(ctx, bonus)
	return err
}

func (s *MongoStore) FindBonusByIdempotencyKey(ctx context.Context, key string) (*models.Bonus, error) {
	var bonus models.Bonus
	err := s.bonuses().FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&bonus)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrBonusNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bonus, nil
}

func (s *MongoStore) InsertCapture(ctx context.Context, capture *models.PaymentCapture) error {
	_, err := s.captures().InsertOne(ctx, capture)
	return err
}

func (s *MongoStore) GetCapture(ctx context.Context, intentRef string) (*models.PaymentCapture, error) {
	var capture models.PaymentCapture
	err := s.captures().FindOne(ctx, bson.M{"intentRef": intentRef}).Decode(&capture)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrCaptureNotFound
	}
	if err != nil {
		return nil, err
	}
	return &capture, nil
}

func (s *MongoStore) SetCaptureStatus(ctx context.Context, intentRef string, status models.CaptureStatus, captureRef string) error {
	set := bson.M{"status": status, "updatedAt": time.Now()}
	if captureRef != "" {
		set["captureRef"] = captureRef
	}
	res, err := s.captures().UpdateOne(ctx, bson.M{"intentRef": intentRef}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrCaptureNotFound
	}
	return nil
}

func (s *MongoStore) MarkCaptureApplied(ctx context.Context, intentRef string) error {
	res, err := s.captures().UpdateOne(ctx, bson.M{"intentRef": intentRef}, bson.M{
		"$set": bson.M{"applied": true, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrCaptureNotFound
	}
	return nil
}

// RunInTransaction executes fn inside a Mongo session. Collection calls made
// with the session context join the transaction and commit or abort as one.
func (s *MongoStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// bsonInt64 normalizes Mongo's numeric decodings.
func bsonInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
