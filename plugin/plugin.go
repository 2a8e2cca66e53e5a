// Package plugin provides an extensible plugin system for Dialtone.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, w interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when a new account is registered.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, acct interface{}) error
}

// OnCreditGranted is called when the one-time welcome credit is applied.
type OnCreditGranted interface {
	Plugin
	OnCreditGranted(ctx context.Context, acct interface{}, amount interface{}) error
}

// OnBalanceAdjusted is called after any top-up, debit, or refund.
type OnBalanceAdjusted interface {
	Plugin
	OnBalanceAdjusted(ctx context.Context, accountID string, delta, newBalance interface{}) error
}

// ──────────────────────────────────────────────────
// Call and message hooks
// ──────────────────────────────────────────────────

// OnCallPlaced is called when an outbound call is originated.
type OnCallPlaced interface {
	Plugin
	OnCallPlaced(ctx context.Context, acct interface{}, destination, providerRef string) error
}

// OnCallSettled is called when a completed call is charged.
type OnCallSettled interface {
	Plugin
	OnCallSettled(ctx context.Context, acct interface{}, event interface{}) error
}

// OnMessageSent is called when a message is sent and charged.
type OnMessageSent interface {
	Plugin
	OnMessageSent(ctx context.Context, acct interface{}, event interface{}) error
}

// OnMessageRefunded is called when a failed message's charge is returned.
type OnMessageRefunded interface {
	Plugin
	OnMessageRefunded(ctx context.Context, acct interface{}, event interface{}, cause error) error
}

// OnInsufficientFunds is called when an operation is refused for lack of
// balance.
type OnInsufficientFunds interface {
	Plugin
	OnInsufficientFunds(ctx context.Context, acct interface{}, required, available interface{}) error
}

// ──────────────────────────────────────────────────
// Maintenance and provider hooks
// ──────────────────────────────────────────────────

// OnUsagePurged is called when the retention janitor removes old events.
type OnUsagePurged interface {
	Plugin
	OnUsagePurged(ctx context.Context, count int64, elapsed time.Duration) error
}

// OnProviderError is called when the telephony provider rejects an
// originate or send request.
type OnProviderError interface {
	Plugin
	OnProviderError(ctx context.Context, operation string, cause error) error
}
