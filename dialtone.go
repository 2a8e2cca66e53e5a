package dialtone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/dialtone/account"
	"github.com/xraph/dialtone/id"
	"github.com/xraph/dialtone/number"
	"github.com/xraph/dialtone/plugin"
	"github.com/xraph/dialtone/store"
	"github.com/xraph/dialtone/telco"
	"github.com/xraph/dialtone/types"
	"github.com/xraph/dialtone/usage"
)

// Wallet is the prepaid calling and messaging engine.
//
// Every account holds a single balance that only moves through the
// store's atomic ledger operations, paired with an append-only usage
// log. Calls are charged after the fact when the carrier reports
// completion; messages are charged up front and refunded on delivery
// failure.
type Wallet struct {
	store    store.Store
	provider telco.Provider
	plugins  *plugin.Registry
	logger   *slog.Logger
	numbers  *number.Generator

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	welcomeCredit     types.Money
	callRate          types.Money // per minute of completed call
	messageRate       types.Money // per message
	minCallBalance    types.Money // required to originate a call
	callbackURL       string
	usageRetention    time.Duration // 0 disables the retention janitor
	retentionInterval time.Duration
}

// New creates a new Wallet instance.
func New(s store.Store, opts ...Option) *Wallet {
	g, _ := number.NewGenerator() //nolint:errcheck // defaults are always valid

	w := &Wallet{
		store:             s,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		numbers:           g,
		stopChan:          make(chan struct{}),
		welcomeCredit:     types.USD(100), // $1.00
		callRate:          types.USD(5),   // $0.05 per minute
		messageRate:       types.USD(5),   // $0.05 per message
		minCallBalance:    types.USD(50),  // $0.50
		retentionInterval: time.Hour,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Option configures a Wallet instance.
type Option func(*Wallet)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) {
		w.logger = logger
		w.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(w *Wallet) {
		_ = w.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithProvider sets the telephony provider.
func WithProvider(p telco.Provider) Option {
	return func(w *Wallet) {
		w.provider = p
	}
}

// WithWelcomeCredit sets the one-time credit granted to new accounts.
func WithWelcomeCredit(amount types.Money) Option {
	return func(w *Wallet) {
		w.welcomeCredit = amount
	}
}

// WithCallRate sets the per-minute charge for completed calls.
func WithCallRate(perMinute types.Money) Option {
	return func(w *Wallet) {
		w.callRate = perMinute
	}
}

// WithMessageRate sets the flat charge per outbound message.
func WithMessageRate(perMessage types.Money) Option {
	return func(w *Wallet) {
		w.messageRate = perMessage
	}
}

// WithMinCallBalance sets the balance an account needs before it may
// originate a call.
func WithMinCallBalance(amount types.Money) Option {
	return func(w *Wallet) {
		w.minCallBalance = amount
	}
}

// WithNumberPlan sets the generator used to allocate dialable numbers.
func WithNumberPlan(g *number.Generator) Option {
	return func(w *Wallet) {
		w.numbers = g
	}
}

// WithCallbackURL sets the URL the carrier posts call status events to.
func WithCallbackURL(url string) Option {
	return func(w *Wallet) {
		w.callbackURL = url
	}
}

// WithUsageRetention enables the retention janitor: usage events older
// than retention are purged every interval.
func WithUsageRetention(retention, interval time.Duration) Option {
	return func(w *Wallet) {
		w.usageRetention = retention
		if interval > 0 {
			w.retentionInterval = interval
		}
	}
}

// Start migrates the store, initializes plugins, and begins background
// workers.
func (w *Wallet) Start(ctx context.Context) error {
	if err := w.store.Migrate(ctx); err != nil {
		return err
	}

	w.plugins.EmitInit(ctx, w)

	if w.usageRetention > 0 {
		w.wg.Add(1)
		go w.retentionWorker(ctx)
	}

	w.logger.Info("wallet started",
		"welcome_credit", w.welcomeCredit,
		"call_rate", w.callRate,
		"message_rate", w.messageRate,
		"number_prefix", w.numbers.Prefix(),
	)

	return nil
}

// Stop shuts down the Wallet.
func (w *Wallet) Stop() error {
	close(w.stopChan)
	w.wg.Wait()

	ctx := context.Background()
	w.plugins.EmitShutdown(ctx)

	return w.store.Close()
}

// ──────────────────────────────────────────────────
// Account Management
// ──────────────────────────────────────────────────

// Register creates a wallet account for a new identity. It allocates a
// fresh dialable number, then applies the welcome credit. Registering an
// identity that already has an account returns ErrAlreadyExists.
func (w *Wallet) Register(ctx context.Context, identity string, metadata map[string]string) (*account.Account, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}

	var created *account.Account
	for attempt := 0; attempt < w.numbers.MaxAttempts(); attempt++ {
		a := &account.Account{
			Entity:   types.NewEntity(),
			ID:       id.NewAccountID(),
			Identity: identity,
			Number:   w.numbers.Candidate(),
			Balance:  types.Zero(w.welcomeCredit.Currency),
			Metadata: metadata,
		}

		err := w.store.CreateAccount(ctx, a)
		if err == nil {
			created = a
			break
		}
		if errors.Is(err, ErrNumberTaken) {
			// Candidate collided with an existing number; try another.
			continue
		}
		return nil, err
	}
	if created == nil {
		return nil, ErrAllocationExhausted
	}

	w.logger.Info("account registered",
		"account_id", created.ID,
		"number", created.Number,
	)
	w.plugins.EmitAccountCreated(ctx, created)

	if err := w.GrantWelcomeCredit(ctx, created.ID); err != nil {
		return nil, err
	}
	return w.store.GetAccount(ctx, created.ID)
}

// SetupAccount returns the account for an identity, creating it (with
// number allocation and welcome credit) on first sight. Safe to call on
// every login.
func (w *Wallet) SetupAccount(ctx context.Context, identity string, metadata map[string]string) (*account.Account, error) {
	a, err := w.store.GetAccountByIdentity(ctx, identity)
	if err == nil {
		// Existing account; make sure the grant was not missed.
		if !a.CreditGranted {
			if err := w.GrantWelcomeCredit(ctx, a.ID); err != nil {
				return nil, err
			}
			return w.store.GetAccount(ctx, a.ID)
		}
		return a, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	a, err = w.Register(ctx, identity, metadata)
	if errors.Is(err, ErrAlreadyExists) {
		// Lost a registration race; the other caller's account wins.
		return w.store.GetAccountByIdentity(ctx, identity)
	}
	return a, err
}

// ResolveAccount looks up an account by its external identity.
func (w *Wallet) ResolveAccount(ctx context.Context, identity string) (*account.Account, error) {
	return w.store.GetAccountByIdentity(ctx, identity)
}

// AccountByNumber looks up an account by its dialable number.
func (w *Wallet) AccountByNumber(ctx context.Context, num string) (*account.Account, error) {
	return w.store.GetAccountByNumber(ctx, num)
}

// Account retrieves an account by ID.
func (w *Wallet) Account(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return w.store.GetAccount(ctx, accountID)
}

// Snapshot returns an account with its balance and recent history,
// newest first.
func (w *Wallet) Snapshot(ctx context.Context, accountID id.AccountID, historyLimit int) (*account.Snapshot, error) {
	a, err := w.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	history, err := w.store.QueryUsage(ctx, accountID, usage.QueryOpts{Limit: historyLimit})
	if err != nil {
		return nil, err
	}
	return &account.Snapshot{
		Account: a,
		Balance: a.Balance,
		History: history,
	}, nil
}

// ──────────────────────────────────────────────────
// Ledger Operations
// ──────────────────────────────────────────────────

// GrantWelcomeCredit applies the one-time welcome credit. At most one
// call ever moves the balance; the rest are no-ops.
func (w *Wallet) GrantWelcomeCredit(ctx context.Context, accountID id.AccountID) error {
	granted, err := w.store.GrantCredit(ctx, accountID, w.welcomeCredit)
	if err != nil {
		return err
	}
	if !granted {
		return nil
	}

	w.recordCredit(ctx, accountID, w.welcomeCredit, map[string]string{"reason": "welcome_credit"})

	a, err := w.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	w.logger.Info("welcome credit granted",
		"account_id", accountID,
		"amount", w.welcomeCredit,
	)
	w.plugins.EmitCreditGranted(ctx, a, w.welcomeCredit)
	return nil
}

// TopUp adds funds to an account.
func (w *Wallet) TopUp(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	if !amount.IsPositive() {
		return types.Money{}, ErrAmountNotPositive
	}

	balance, err := w.store.Credit(ctx, accountID, amount)
	if err != nil {
		return types.Money{}, err
	}

	w.recordCredit(ctx, accountID, amount, map[string]string{"reason": "top_up"})
	w.plugins.EmitBalanceAdjusted(ctx, accountID.String(), amount, balance)
	return balance, nil
}

// Debit removes funds from an account, failing with ErrInsufficientFunds
// when the balance does not cover the amount.
func (w *Wallet) Debit(ctx context.Context, accountID id.AccountID, amount types.Money) (types.Money, error) {
	if !amount.IsPositive() {
		return types.Money{}, ErrAmountNotPositive
	}

	balance, err := w.store.DebitIfSufficient(ctx, accountID, amount)
	if err != nil {
		return types.Money{}, err
	}

	w.plugins.EmitBalanceAdjusted(ctx, accountID.String(), amount.Negate(), balance)
	return balance, nil
}

// Balance returns the current balance of an account.
func (w *Wallet) Balance(ctx context.Context, accountID id.AccountID) (types.Money, error) {
	return w.store.Balance(ctx, accountID)
}

// History returns an account's usage events, newest first.
func (w *Wallet) History(ctx context.Context, accountID id.AccountID, opts usage.QueryOpts) ([]*usage.Event, error) {
	return w.store.QueryUsage(ctx, accountID, opts)
}

// ──────────────────────────────────────────────────
// Calls
// ──────────────────────────────────────────────────

// PlacedCall describes a call accepted by the carrier. The charge is
// settled later, when the carrier reports the outcome.
type PlacedCall struct {
	CallID      id.CallID `json:"call_id"`
	ProviderRef string    `json:"provider_ref"`
	Destination string    `json:"destination"`
}

// PlaceCall originates an outbound call for an identity. It requires the
// account balance to be at or above the minimum call balance; nothing is
// charged until the completion callback arrives.
func (w *Wallet) PlaceCall(ctx context.Context, identity, destination string) (*PlacedCall, error) {
	if w.provider == nil {
		return nil, ErrProviderUnavailable
	}
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidInput)
	}

	a, err := w.store.GetAccountByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}

	if a.Balance.LessThan(w.minCallBalance) {
		w.plugins.EmitInsufficientFunds(ctx, a, w.minCallBalance, a.Balance)
		return nil, fmt.Errorf("%w: balance %s below call minimum %s",
			ErrInsufficientFunds, a.Balance, w.minCallBalance)
	}

	ref, err := w.provider.OriginateCall(ctx, destination, w.callbackURL)
	if err != nil {
		w.plugins.EmitProviderError(ctx, "originate_call", err)
		return nil, fmt.Errorf("%w: originate call: %v", ErrProviderUnavailable, err)
	}

	w.logger.Info("call placed",
		"account_id", a.ID,
		"destination", destination,
		"provider_ref", ref,
	)
	w.plugins.EmitCallPlaced(ctx, a, destination, ref)

	return &PlacedCall{
		CallID:      id.NewCallID(),
		ProviderRef: ref,
		Destination: destination,
	}, nil
}

// HandleCallStatus settles a carrier status callback. Only completed
// calls are charged, at the per-minute rate prorated to the second. A
// replayed callback settles nothing; a caller identity with no account
// is logged and dropped. The charge clamps at zero when the remaining
// balance does not cover the full cost.
func (w *Wallet) HandleCallStatus(ctx context.Context, ev telco.StatusEvent) error {
	if !ev.State.Billable() {
		w.logger.Debug("ignoring non-billable call status",
			"call_ref", ev.CallRef,
			"state", ev.State,
		)
		return nil
	}

	a, err := w.store.GetAccountByIdentity(ctx, ev.CallerIdentity)
	if err != nil {
		if IsNotFound(err) {
			w.logger.Warn("call status for unknown caller",
				"caller_identity", ev.CallerIdentity,
				"call_ref", ev.CallRef,
			)
			return nil
		}
		return err
	}

	cost := w.callRate.Multiply(ev.DurationSeconds).Divide(60)

	// Record before debiting: the unique provider ref makes the event the
	// settlement lock, so a replay can never charge twice.
	event := &usage.Event{
		Entity:          types.NewEntity(),
		ID:              id.NewUsageEventID(),
		AccountID:       a.ID,
		Kind:            usage.KindCall,
		Direction:       usage.DirectionOutbound,
		Counterparty:    ev.Destination,
		Cost:            cost,
		DurationSeconds: ev.DurationSeconds,
		Timestamp:       time.Now().UTC(),
		ProviderRef:     ev.CallRef,
	}
	if err := w.store.AppendUsage(ctx, event); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			w.logger.Debug("call already settled", "call_ref", ev.CallRef)
			return nil
		}
		return err
	}

	balance, err := w.store.DebitClamped(ctx, a.ID, cost)
	if err != nil {
		return err
	}

	w.logger.Info("call settled",
		"account_id", a.ID,
		"call_ref", ev.CallRef,
		"duration_seconds", ev.DurationSeconds,
		"cost", cost,
		"balance", balance,
	)
	w.plugins.EmitCallSettled(ctx, a, event)
	w.plugins.EmitBalanceAdjusted(ctx, a.ID.String(), cost.Negate(), balance)
	return nil
}

// ──────────────────────────────────────────────────
// Messages
// ──────────────────────────────────────────────────

// SentMessage describes a message accepted by the carrier.
type SentMessage struct {
	MessageID   id.MessageID `json:"message_id"`
	ProviderRef string       `json:"provider_ref"`
	Destination string       `json:"destination"`
	Cost        types.Money  `json:"cost"`
}

// SendMessage sends an outbound message for an identity. The flat rate
// is debited up front; if the carrier then refuses the message the
// charge is returned in full.
func (w *Wallet) SendMessage(ctx context.Context, identity, destination, body string) (*SentMessage, error) {
	if w.provider == nil {
		return nil, ErrProviderUnavailable
	}
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidInput)
	}

	a, err := w.store.GetAccountByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}

	balance, err := w.store.DebitIfSufficient(ctx, a.ID, w.messageRate)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			w.plugins.EmitInsufficientFunds(ctx, a, w.messageRate, a.Balance)
		}
		return nil, err
	}

	ref, sendErr := w.provider.SendMessage(ctx, destination, body)
	if sendErr != nil {
		// Undo the pre-debit so a carrier failure costs nothing.
		refunded, refundErr := w.store.Credit(ctx, a.ID, w.messageRate)
		if refundErr != nil {
			w.logger.Error("message refund failed",
				"account_id", a.ID,
				"amount", w.messageRate,
				"error", refundErr,
			)
			return nil, refundErr
		}

		event := &usage.Event{
			Entity:       types.NewEntity(),
			ID:           id.NewUsageEventID(),
			AccountID:    a.ID,
			Kind:         usage.KindCredit,
			Direction:    usage.DirectionOutbound,
			Counterparty: destination,
			Cost:         w.messageRate,
			Timestamp:    time.Now().UTC(),
			Metadata:     map[string]string{"reason": "message_refund"},
		}
		if err := w.store.AppendUsage(ctx, event); err != nil {
			w.logger.Warn("record message refund failed", "error", err)
		}

		w.plugins.EmitProviderError(ctx, "send_message", sendErr)
		w.plugins.EmitMessageRefunded(ctx, a, event, sendErr)
		w.plugins.EmitBalanceAdjusted(ctx, a.ID.String(), w.messageRate, refunded)
		return nil, fmt.Errorf("%w: send message: %v", ErrProviderUnavailable, sendErr)
	}

	event := &usage.Event{
		Entity:       types.NewEntity(),
		ID:           id.NewUsageEventID(),
		AccountID:    a.ID,
		Kind:         usage.KindMessage,
		Direction:    usage.DirectionOutbound,
		Counterparty: destination,
		Cost:         w.messageRate,
		Timestamp:    time.Now().UTC(),
		ProviderRef:  ref,
	}
	if err := w.store.AppendUsage(ctx, event); err != nil {
		w.logger.Warn("record message usage failed",
			"provider_ref", ref,
			"error", err,
		)
	}

	w.logger.Info("message sent",
		"account_id", a.ID,
		"destination", destination,
		"provider_ref", ref,
		"balance", balance,
	)
	w.plugins.EmitMessageSent(ctx, a, event)
	w.plugins.EmitBalanceAdjusted(ctx, a.ID.String(), w.messageRate.Negate(), balance)

	return &SentMessage{
		MessageID:   id.NewMessageID(),
		ProviderRef: ref,
		Destination: destination,
		Cost:        w.messageRate,
	}, nil
}

// ──────────────────────────────────────────────────
// Internal helpers and workers
// ──────────────────────────────────────────────────

// recordCredit appends a credit entry to the usage log. Failures are
// logged, not propagated: the balance move already happened.
func (w *Wallet) recordCredit(ctx context.Context, accountID id.AccountID, amount types.Money, metadata map[string]string) {
	event := &usage.Event{
		Entity:    types.NewEntity(),
		ID:        id.NewUsageEventID(),
		AccountID: accountID,
		Kind:      usage.KindCredit,
		Cost:      amount,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
	if err := w.store.AppendUsage(ctx, event); err != nil {
		w.logger.Warn("record credit failed",
			"account_id", accountID,
			"error", err,
		)
	}
}

// retentionWorker purges usage events older than the retention window.
func (w *Wallet) retentionWorker(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return

		case <-ticker.C:
			start := time.Now()
			cutoff := time.Now().UTC().Add(-w.usageRetention)

			count, err := w.store.PurgeUsage(ctx, cutoff)
			if err != nil {
				w.logger.Warn("usage purge failed", "error", err)
				continue
			}
			if count > 0 {
				w.logger.Info("usage purged",
					"count", count,
					"cutoff", cutoff,
				)
				w.plugins.EmitUsagePurged(ctx, count, time.Since(start))
			}
		}
	}
}
