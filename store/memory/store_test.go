package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/dialtone"
	"github.com/xraph/dialtone/account"
	"github.com/xraph/dialtone/id"
	"github.com/xraph/dialtone/store/memory"
	"github.com/xraph/dialtone/types"
	"github.com/xraph/dialtone/usage"
)

func newAccount(identity, number string) *account.Account {
	return &account.Account{
		Entity:   types.NewEntity(),
		ID:       id.NewAccountID(),
		Identity: identity,
		Number:   number,
		Balance:  types.Zero("usd"),
	}
}

func TestCreateAndLookupAccount(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	byID, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if byID.Identity != "user-1" {
		t.Errorf("identity: got %q, want %q", byID.Identity, "user-1")
	}

	byIdentity, err := s.GetAccountByIdentity(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAccountByIdentity failed: %v", err)
	}
	if byIdentity.ID.String() != a.ID.String() {
		t.Error("GetAccountByIdentity returned wrong account")
	}

	byNumber, err := s.GetAccountByNumber(ctx, "+18201234567")
	if err != nil {
		t.Fatalf("GetAccountByNumber failed: %v", err)
	}
	if byNumber.ID.String() != a.ID.String() {
		t.Error("GetAccountByNumber returned wrong account")
	}

	if _, err := s.GetAccount(ctx, id.NewAccountID()); !errors.Is(err, dialtone.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateAccountUniqueness(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	if err := s.CreateAccount(ctx, newAccount("user-1", "+18201111111")); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	if err := s.CreateAccount(ctx, newAccount("user-1", "+18202222222")); !errors.Is(err, dialtone.ErrAlreadyExists) {
		t.Errorf("duplicate identity: expected ErrAlreadyExists, got %v", err)
	}

	if err := s.CreateAccount(ctx, newAccount("user-2", "+18201111111")); !errors.Is(err, dialtone.ErrNumberTaken) {
		t.Errorf("duplicate number: expected ErrNumberTaken, got %v", err)
	}
}

func TestGrantCreditOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	granted, err := s.GrantCredit(ctx, a.ID, types.USD(100))
	if err != nil {
		t.Fatalf("GrantCredit failed: %v", err)
	}
	if !granted {
		t.Fatal("first grant should succeed")
	}

	granted, err = s.GrantCredit(ctx, a.ID, types.USD(100))
	if err != nil {
		t.Fatalf("second GrantCredit failed: %v", err)
	}
	if granted {
		t.Error("second grant should be a no-op")
	}

	bal, err := s.Balance(ctx, a.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !bal.Equal(types.USD(100)) {
		t.Errorf("balance: got %s, want %s", bal, types.USD(100))
	}
}

func TestGrantCreditConcurrent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	var g errgroup.Group
	results := make(chan bool, 50)
	for range 50 {
		g.Go(func() error {
			granted, err := s.GrantCredit(ctx, a.ID, types.USD(100))
			if err != nil {
				return err
			}
			results <- granted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent grants failed: %v", err)
	}
	close(results)

	var wins int
	for granted := range results {
		if granted {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one winning grant, got %d", wins)
	}

	bal, _ := s.Balance(ctx, a.ID)
	if !bal.Equal(types.USD(100)) {
		t.Errorf("balance after concurrent grants: got %s, want %s", bal, types.USD(100))
	}
}

func TestDebitIfSufficient(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if _, err := s.Credit(ctx, a.ID, types.USD(100)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	remaining, err := s.DebitIfSufficient(ctx, a.ID, types.USD(30))
	if err != nil {
		t.Fatalf("DebitIfSufficient failed: %v", err)
	}
	if !remaining.Equal(types.USD(70)) {
		t.Errorf("remaining: got %s, want %s", remaining, types.USD(70))
	}

	if _, err := s.DebitIfSufficient(ctx, a.ID, types.USD(71)); !errors.Is(err, dialtone.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	// Failed debit must not change the balance.
	bal, _ := s.Balance(ctx, a.ID)
	if !bal.Equal(types.USD(70)) {
		t.Errorf("balance after failed debit: got %s, want %s", bal, types.USD(70))
	}
}

func TestDebitIfSufficientConcurrent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if _, err := s.Credit(ctx, a.ID, types.USD(100)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	// Twenty workers race to take the full balance; exactly one can win.
	var g errgroup.Group
	var successes, insufficient int
	results := make(chan error, 20)
	for range 20 {
		g.Go(func() error {
			_, err := s.DebitIfSufficient(ctx, a.ID, types.USD(100))
			results <- err
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, dialtone.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly one successful debit, got %d", successes)
	}
	if insufficient != 19 {
		t.Errorf("expected 19 insufficient-funds failures, got %d", insufficient)
	}

	bal, _ := s.Balance(ctx, a.ID)
	if !bal.IsZero() {
		t.Errorf("balance should be zero, got %s", bal)
	}
}

func TestDebitClamped(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if _, err := s.Credit(ctx, a.ID, types.Micros(50_000, "usd")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	remaining, err := s.DebitClamped(ctx, a.ID, types.Micros(75_000, "usd"))
	if err != nil {
		t.Fatalf("DebitClamped failed: %v", err)
	}
	if !remaining.IsZero() {
		t.Errorf("clamped balance: got %s, want zero", remaining)
	}
}

func TestAppendUsageDedup(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	e := &usage.Event{
		Entity:      types.NewEntity(),
		ID:          id.NewUsageEventID(),
		AccountID:   a.ID,
		Kind:        usage.KindCall,
		Direction:   usage.DirectionOutbound,
		Cost:        types.Micros(75_000, "usd"),
		Timestamp:   time.Now().UTC(),
		ProviderRef: "CA-123",
	}
	if err := s.AppendUsage(ctx, e); err != nil {
		t.Fatalf("AppendUsage failed: %v", err)
	}

	replay := *e
	replay.ID = id.NewUsageEventID()
	if err := s.AppendUsage(ctx, &replay); !errors.Is(err, dialtone.ErrDuplicateEvent) {
		t.Errorf("expected ErrDuplicateEvent, got %v", err)
	}

	// Events without a provider reference never collide.
	for range 3 {
		if err := s.AppendUsage(ctx, &usage.Event{
			Entity:    types.NewEntity(),
			ID:        id.NewUsageEventID(),
			AccountID: a.ID,
			Kind:      usage.KindCredit,
			Cost:      types.USD(5),
			Timestamp: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("AppendUsage without ref failed: %v", err)
		}
	}
}

func TestQueryUsageOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	kinds := []usage.Kind{usage.KindCredit, usage.KindCall, usage.KindMessage, usage.KindCall}
	for i, k := range kinds {
		if err := s.AppendUsage(ctx, &usage.Event{
			Entity:      types.NewEntity(),
			ID:          id.NewUsageEventID(),
			AccountID:   a.ID,
			Kind:        k,
			Cost:        types.USD(5),
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			ProviderRef: fmt.Sprintf("ref-%d", i),
		}); err != nil {
			t.Fatalf("AppendUsage failed: %v", err)
		}
	}

	all, err := s.QueryUsage(ctx, a.ID, usage.QueryOpts{})
	if err != nil {
		t.Fatalf("QueryUsage failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Fatal("events not in descending timestamp order")
		}
	}

	calls, err := s.QueryUsage(ctx, a.ID, usage.QueryOpts{Kind: usage.KindCall})
	if err != nil {
		t.Fatalf("QueryUsage by kind failed: %v", err)
	}
	if len(calls) != 2 {
		t.Errorf("expected 2 call events, got %d", len(calls))
	}

	window, err := s.QueryUsage(ctx, a.ID, usage.QueryOpts{
		Start: base.Add(time.Hour),
		End:   base.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("QueryUsage by window failed: %v", err)
	}
	if len(window) != 2 {
		t.Errorf("expected 2 events in window, got %d", len(window))
	}

	paged, err := s.QueryUsage(ctx, a.ID, usage.QueryOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("QueryUsage paged failed: %v", err)
	}
	if len(paged) != 2 {
		t.Errorf("expected 2 paged events, got %d", len(paged))
	}

	other, err := s.QueryUsage(ctx, id.NewAccountID(), usage.QueryOpts{})
	if err != nil {
		t.Fatalf("QueryUsage for other account failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no events for other account, got %d", len(other))
	}
}

func TestPurgeUsage(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAccount("user-1", "+18201234567")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		if err := s.AppendUsage(ctx, &usage.Event{
			Entity:    types.NewEntity(),
			ID:        id.NewUsageEventID(),
			AccountID: a.ID,
			Kind:      usage.KindCall,
			Cost:      types.USD(5),
			Timestamp: base.AddDate(0, 0, i),
		}); err != nil {
			t.Fatalf("AppendUsage failed: %v", err)
		}
	}

	purged, err := s.PurgeUsage(ctx, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("PurgeUsage failed: %v", err)
	}
	if purged != 3 {
		t.Errorf("purged: got %d, want 3", purged)
	}

	remaining, _ := s.QueryUsage(ctx, a.ID, usage.QueryOpts{})
	if len(remaining) != 2 {
		t.Errorf("remaining events: got %d, want 2", len(remaining))
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, dialtone.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed after Close, got %v", err)
	}
}
