package store

import (
	"context"
	"time"

	"github.com/xraph/dialtone/account"
	"github.com/xraph/dialtone/id"
	"github.com/xraph/dialtone/types"
	"github.com/xraph/dialtone/usage"
)

// Store is the unified storage interface for all Dialtone entities.
//
// Balance-moving methods are the concurrency boundary: every backend must
// implement GrantCredit, DebitIfSufficient, Credit, and DebitClamped as
// single atomic operations so concurrent callers can never observe or
// produce an intermediate balance.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error)
	GetAccountByIdentity(ctx context.Context, identity string) (*account.Account, error)
	GetAccountByNumber(ctx context.Context, num string) (*account.Account, error)
	ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error)

	// Ledger methods. All amounts must be positive; balances never go
	// negative.
	//
	// GrantCredit applies the one-time welcome credit. It returns true
	// only for the single caller that flips the grant flag; later and
	// concurrent callers get false with a nil error.
	GrantCredit(ctx context.Context, accountID id.AccountID, amount types.Money) (bool, error)

	// DebitIfSufficient subtracts amount only if the current balance
	// covers it, returning ErrInsufficientFunds otherwise.
	DebitIfSufficient(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error)

	// Credit unconditionally adds amount (top-up, refund).
	Credit(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error)

	// DebitClamped subtracts amount but clamps the result at zero,
	// for settling charges that may exceed the remaining balance.
	DebitClamped(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error)

	Balance(ctx context.Context, accountID id.AccountID) (types.Money, error)

	// Usage methods. AppendUsage returns ErrDuplicateEvent when an event
	// with the same non-empty provider reference was already recorded.
	AppendUsage(ctx context.Context, e *usage.Event) error
	QueryUsage(ctx context.Context, accountID id.AccountID, opts usage.QueryOpts) ([]*usage.Event, error)
	PurgeUsage(ctx context.Context, before time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
