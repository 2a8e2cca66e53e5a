// Package memory provides an in-memory Store for tests and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/dialtone"
	"github.com/xraph/dialtone/account"
	"github.com/xraph/dialtone/id"
	"github.com/xraph/dialtone/types"
	"github.com/xraph/dialtone/usage"
)

// Store keeps all entities behind a single mutex. The mutex stands in
// for the conditional updates the SQL and Mongo backends use, so the
// ledger methods have the same all-or-nothing semantics.
type Store struct {
	mu sync.RWMutex

	// Account storage plus lookup indexes
	accounts   map[string]*account.Account
	byIdentity map[string]string // identity -> account ID
	byNumber   map[string]string // number -> account ID

	// Usage event storage plus the settlement dedup index
	events        []*usage.Event
	byProviderRef map[string]struct{}

	closed bool
}

func New() *Store {
	return &Store{
		accounts:      make(map[string]*account.Account),
		byIdentity:    make(map[string]string),
		byNumber:      make(map[string]string),
		events:        make([]*usage.Event, 0),
		byProviderRef: make(map[string]struct{}),
	}
}

// Account methods

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dialtone.ErrStoreClosed
	}
	if _, exists := s.accounts[a.ID.String()]; exists {
		return dialtone.ErrAlreadyExists
	}
	if _, exists := s.byIdentity[a.Identity]; exists {
		return dialtone.ErrAlreadyExists
	}
	if _, exists := s.byNumber[a.Number]; exists {
		return dialtone.ErrNumberTaken
	}

	s.accounts[a.ID.String()] = a
	s.byIdentity[a.Identity] = a.ID.String()
	s.byNumber[a.Number] = a.ID.String()
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID.String()]; ok {
		return copyAccount(a), nil
	}
	return nil, dialtone.ErrAccountNotFound
}

func (s *Store) GetAccountByIdentity(_ context.Context, identity string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if aid, ok := s.byIdentity[identity]; ok {
		return copyAccount(s.accounts[aid]), nil
	}
	return nil, dialtone.ErrAccountNotFound
}

func (s *Store) GetAccountByNumber(_ context.Context, num string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if aid, ok := s.byNumber[num]; ok {
		return copyAccount(s.accounts[aid]), nil
	}
	return nil, dialtone.ErrAccountNotFound
}

func (s *Store) ListAccounts(_ context.Context, opts account.ListOpts) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*account.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		result = append(result, copyAccount(a))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Ledger methods

func (s *Store) GrantCredit(_ context.Context, accountID id.AccountID, amount types.Money) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return false, dialtone.ErrAccountNotFound
	}
	if a.CreditGranted {
		return false, nil
	}

	a.Balance = a.Balance.Max(amount)
	a.CreditGranted = true
	a.Touch()
	return true, nil
}

func (s *Store) DebitIfSufficient(_ context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return types.Money{}, dialtone.ErrAccountNotFound
	}
	if a.Balance.LessThan(amount) {
		return types.Money{}, dialtone.ErrInsufficientFunds
	}

	a.Balance = a.Balance.Subtract(amount)
	a.Touch()
	return a.Balance, nil
}

func (s *Store) Credit(_ context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return types.Money{}, dialtone.ErrAccountNotFound
	}

	a.Balance = a.Balance.Add(amount)
	a.Touch()
	return a.Balance, nil
}

func (s *Store) DebitClamped(_ context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return types.Money{}, dialtone.ErrAccountNotFound
	}

	next := a.Balance.Subtract(amount)
	if next.IsNegative() {
		next = types.Zero(a.Balance.Currency)
	}
	a.Balance = next
	a.Touch()
	return a.Balance, nil
}

func (s *Store) Balance(_ context.Context, accountID id.AccountID) (types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID.String()]; ok {
		return a.Balance, nil
	}
	return types.Money{}, dialtone.ErrAccountNotFound
}

// Usage methods

func (s *Store) AppendUsage(_ context.Context, e *usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ProviderRef != "" {
		if _, dup := s.byProviderRef[e.ProviderRef]; dup {
			return dialtone.ErrDuplicateEvent
		}
		s.byProviderRef[e.ProviderRef] = struct{}{}
	}

	s.events = append(s.events, e)
	return nil
}

func (s *Store) QueryUsage(_ context.Context, accountID id.AccountID, opts usage.QueryOpts) ([]*usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*usage.Event, 0)
	for _, e := range s.events {
		if e.AccountID.String() != accountID.String() {
			continue
		}
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		if !opts.Start.IsZero() && e.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && !e.Timestamp.Before(opts.End) {
			continue
		}
		result = append(result, e)
	}

	// Newest first
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) PurgeUsage(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*usage.Event, 0, len(s.events))
	var purged int64
	for _, e := range s.events {
		if e.Timestamp.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return purged, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return dialtone.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func copyAccount(a *account.Account) *account.Account {
	dup := *a
	if a.Metadata != nil {
		dup.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}
