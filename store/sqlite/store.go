// Package sqlite implements the Dialtone store on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/dialtone"
	"github.com/xraph/dialtone/account"
	"github.com/xraph/dialtone/id"
	dialtonestore "github.com/xraph/dialtone/store"
	"github.com/xraph/dialtone/types"
	"github.com/xraph/dialtone/usage"
)

// compile-time interface check
var _ dialtonestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
//
// Balance updates are single conditional UPDATE statements with RETURNING,
// so every ledger method is atomic under concurrent access without
// explicit transactions.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("dialtone/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("dialtone/sqlite: migration failed: %w", err)
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return classifyConflict(ctx, s, a, err)
	}
	return nil
}

// classifyConflict maps a unique constraint violation on insert to the
// matching sentinel so callers can retry number allocation.
func classifyConflict(ctx context.Context, s *Store, a *account.Account, insertErr error) error {
	if existing, err := s.GetAccountByIdentity(ctx, a.Identity); err == nil && existing != nil {
		return dialtone.ErrAlreadyExists
	}
	if existing, err := s.GetAccountByNumber(ctx, a.Number); err == nil && existing != nil {
		return dialtone.ErrNumberTaken
	}
	return insertErr
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", accountID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dialtone.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) GetAccountByIdentity(ctx context.Context, identity string) (*account.Account, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("identity = ?", identity).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dialtone.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) GetAccountByNumber(ctx context.Context, num string) (*account.Account, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("number = ?", num).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dialtone.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel
	q := s.sdb.NewSelect(&models)

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	var balance int64
	err := s.sdb.NewRaw(`
		UPDATE dialtone_accounts
		SET balance = MAX(balance, ?), credit_granted = 1, updated_at = ?
		WHERE id = ? AND credit_granted = 0
		RETURNING balance
	`, amount.Amount, now(), accountID.String()).Scan(ctx, &balance)
	if err == nil {
		return true, nil
	}
	if !isNoRows(err) {
		return false, err
	}

	// No row updated: the grant already happened, or the account is gone.
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) DebitIfSufficient(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	var balance int64
	err := s.sdb.NewRaw(`
		UPDATE dialtone_accounts
		SET balance = balance - ?, updated_at = ?
		WHERE id = ? AND balance >= ?
		RETURNING balance
	`, amount.Amount, now(), accountID.String(), amount.Amount).Scan(ctx, &balance)
	if err == nil {
		return types.Micros(balance, amount.Currency), nil
	}
	if !isNoRows(err) {
		return types.Money{}, err
	}

	// No row updated: not enough balance, or the account is gone.
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return types.Money{}, err
	}
	return types.Money{}, dialtone.ErrInsufficientFunds
}

func (s *Store) Credit(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	var balance int64
	err := s.sdb.NewRaw(`
		UPDATE dialtone_accounts
		SET balance = balance + ?, updated_at = ?
		WHERE id = ?
		RETURNING balance
	`, amount.Amount, now(), accountID.String()).Scan(ctx, &balance)
	if err != nil {
		if isNoRows(err) {
			return types.Money{}, dialtone.ErrAccountNotFound
		}
		return types.Money{}, err
	}
	return types.Micros(balance, amount.Currency), nil
}

func (s *Store) DebitClamped(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	var balance int64
	err := s.sdb.NewRaw(`
		UPDATE dialtone_accounts
		SET balance = MAX(0, balance - ?), updated_at = ?
		WHERE id = ?
		RETURNING balance
	`, amount.Amount, now(), accountID.String()).Scan(ctx, &balance)
	if err != nil {
		if isNoRows(err) {
			return types.Money{}, dialtone.ErrAccountNotFound
		}
		return types.Money{}, err
	}
	return types.Micros(balance, amount.Currency), nil
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
	res, err := s.sdb.NewInsert(m).
		OnConflict("(provider_ref) WHERE provider_ref != '' DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 && e.ProviderRef != "" {
		return dialtone.ErrDuplicateEvent
	}
	return nil
}

func (s *Store) QueryUsage(ctx context.Context, accountID id.AccountID, opts usage.QueryOpts) ([]*usage.Event, error) {
	var models []usageEventModel
	q := s.sdb.NewSelect(&models).
		Where("account_id = ?", accountID.String())

	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if !opts.Start.IsZero() {
		q = q.Where("timestamp >= ?", opts.Start)
	}
	if !opts.End.IsZero() {
		q = q.Where("timestamp < ?", opts.End)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.sdb.NewDelete((*usageEventModel)(nil)).
		Where("timestamp < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
