// Package mongo implements the Dialtone store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/dialtone"
	"github.com/xraph/dialtone/account"
	"github.com/xraph/dialtone/id"
	dialtonestore "github.com/xraph/dialtone/store"
	"github.com/xraph/dialtone/types"
	"github.com/xraph/dialtone/usage"
)

// Collection name constants.
const (
	colAccounts    = "dialtone_accounts"
	colUsageEvents = "dialtone_usage_events"
)

// compile-time interface check
var _ dialtonestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Ledger methods rely on filtered single-document updates, which MongoDB
// applies atomically. DebitClamped needs a read-modify-write, so it runs
// an optimistic compare-and-swap loop instead.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all Dialtone collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("dialtone/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.classifyConflict(ctx, a)
		}
		return fmt.Errorf("dialtone/mongo: create account: %w", err)
	}
	return nil
}

// classifyConflict maps a duplicate key error on insert to the matching
// sentinel so callers can retry number allocation.
func (s *Store) classifyConflict(ctx context.Context, a *account.Account) error {
	if existing, err := s.GetAccountByIdentity(ctx, a.Identity); err == nil && existing != nil {
		return dialtone.ErrAlreadyExists
	}
	return dialtone.ErrNumberTaken
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, dialtone.ErrAccountNotFound
		}
		return nil, fmt.Errorf("dialtone/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) GetAccountByIdentity(ctx context.Context, identity string) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"identity": identity}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, dialtone.ErrAccountNotFound
		}
		return nil, fmt.Errorf("dialtone/mongo: get account by identity: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) GetAccountByNumber(ctx context.Context, num string) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"number": num}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, dialtone.ErrAccountNotFound
		}
		return nil, fmt.Errorf("dialtone/mongo: get account by number: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dialtone/mongo: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Ledger Store ====================

func (s *Store) GrantCredit(ctx context.Context, accountID id.AccountID, amount types.Money) (bool, error) {
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String(), "credit_granted": false}).
		SetUpdate(bson.M{
			"$max": bson.M{"balance": amount.Amount},
			"$set": bson.M{"credit_granted": true, "updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("dialtone/mongo: grant credit: %w", err)
	}
	if res.MatchedCount() > 0 {
		return true, nil
	}

	// No document matched: the grant already happened, or the account is gone.
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) DebitIfSufficient(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String(), "balance": bson.M{"$gte": amount.Amount}}).
		SetUpdate(bson.M{
			"$inc": bson.M{"balance": -amount.Amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return types.Money{}, fmt.Errorf("dialtone/mongo: debit: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetAccount(ctx, accountID); err != nil {
			return types.Money{}, err
		}
		return types.Money{}, dialtone.ErrInsufficientFunds
	}
	return s.Balance(ctx, accountID)
}

func (s *Store) Credit(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		SetUpdate(bson.M{
			"$inc": bson.M{"balance": amount.Amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return types.Money{}, fmt.Errorf("dialtone/mongo: credit: %w", err)
	}
	if res.MatchedCount() == 0 {
		return types.Money{}, dialtone.ErrAccountNotFound
	}
	return s.Balance(ctx, accountID)
}

func (s *Store) DebitClamped(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	// Clamping needs the current value, so compare-and-swap on the balance
	// read and retry if another writer got in between.
	for {
		if err := ctx.Err(); err != nil {
			return types.Money{}, err
		}

		current, err := s.Balance(ctx, accountID)
		if err != nil {
			return types.Money{}, err
		}

		next := current.Subtract(amount)
		if next.IsNegative() {
			next = types.Zero(current.Currency)
		}

		res, err := s.mdb.NewUpdate((*accountModel)(nil)).
			Filter(bson.M{"_id": accountID.String(), "balance": current.Amount}).
			SetUpdate(bson.M{
				"$set": bson.M{"balance": next.Amount, "updated_at": now()},
			}).
			Exec(ctx)
		if err != nil {
			return types.Money{}, fmt.Errorf("dialtone/mongo: debit clamped: %w", err)
		}
		if res.MatchedCount() > 0 {
			return next, nil
		}
	}
}

func (s *Store) Balance(ctx context.Context, accountID id.AccountID) (types.Money, error) {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return types.Money{}, err
	}
	return a.Balance, nil
}

// ==================== Usage Store ====================

func (s *Store) AppendUsage(ctx context.Context, e *usage.Event) error {
	m := toUsageEventModel(e)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return dialtone.ErrDuplicateEvent
		}
		return fmt.Errorf("dialtone/mongo: append usage: %w", err)
	}
	return nil
}

func (s *Store) QueryUsage(ctx context.Context, accountID id.AccountID, opts usage.QueryOpts) ([]*usage.Event, error) {
	var models []usageEventModel

	filter := bson.M{"account_id": accountID.String()}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if !opts.Start.IsZero() || !opts.End.IsZero() {
		window := bson.M{}
		if !opts.Start.IsZero() {
			window["$gte"] = opts.Start
		}
		if !opts.End.IsZero() {
			window["$lt"] = opts.End
		}
		filter["timestamp"] = window
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dialtone/mongo: query usage: %w", err)
	}

	result := make([]*usage.Event, len(models))
	for i := range models {
		evt, err := fromUsageEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*usageEventModel)(nil)).
		Filter(bson.M{"timestamp": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("dialtone/mongo: purge usage: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all Dialtone collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "identity", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colUsageEvents: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{
				Keys:    bson.D{{Key: "provider_ref", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
	}
}
