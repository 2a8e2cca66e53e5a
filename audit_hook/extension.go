// Package audithook bridges Dialtone lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// any particular audit system directly. Callers inject a RecorderFunc
// adapter that bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/dialtone/account"
	"github.com/xraph/dialtone/plugin"
	"github.com/xraph/dialtone/usage"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnAccountCreated    = (*Extension)(nil)
	_ plugin.OnCreditGranted     = (*Extension)(nil)
	_ plugin.OnBalanceAdjusted   = (*Extension)(nil)
	_ plugin.OnCallPlaced        = (*Extension)(nil)
	_ plugin.OnCallSettled       = (*Extension)(nil)
	_ plugin.OnMessageSent       = (*Extension)(nil)
	_ plugin.OnMessageRefunded   = (*Extension)(nil)
	_ plugin.OnInsufficientFunds = (*Extension)(nil)
	_ plugin.OnUsagePurged       = (*Extension)(nil)
	_ plugin.OnProviderError     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so the package carries no backend dependency;
// callers inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Dialtone lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, acct interface{}) error {
	accountID, number := accountDetails(acct)
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, accountID, CategoryAccount, nil,
		"number", number,
	)
}

// OnCreditGranted implements plugin.OnCreditGranted.
func (e *Extension) OnCreditGranted(ctx context.Context, acct, amount interface{}) error {
	accountID, _ := accountDetails(acct)
	return e.record(ctx, ActionCreditGranted, SeverityInfo, OutcomeSuccess,
		ResourceBalance, accountID, CategoryLedger, nil,
		"amount", fmt.Sprintf("%v", amount),
	)
}

// OnBalanceAdjusted implements plugin.OnBalanceAdjusted.
func (e *Extension) OnBalanceAdjusted(ctx context.Context, accountID string, delta, newBalance interface{}) error {
	return e.record(ctx, ActionBalanceAdjusted, SeverityInfo, OutcomeSuccess,
		ResourceBalance, accountID, CategoryLedger, nil,
		"delta", fmt.Sprintf("%v", delta),
		"balance", fmt.Sprintf("%v", newBalance),
	)
}

// OnInsufficientFunds implements plugin.OnInsufficientFunds.
func (e *Extension) OnInsufficientFunds(ctx context.Context, acct, required, available interface{}) error {
	accountID, _ := accountDetails(acct)
	return e.record(ctx, ActionInsufficientFunds, SeverityWarning, OutcomeFailure,
		ResourceBalance, accountID, CategoryLedger, nil,
		"required", fmt.Sprintf("%v", required),
		"available", fmt.Sprintf("%v", available),
	)
}

// ──────────────────────────────────────────────────
// Call and message hooks
// ──────────────────────────────────────────────────

// OnCallPlaced implements plugin.OnCallPlaced.
func (e *Extension) OnCallPlaced(ctx context.Context, acct interface{}, destination, providerRef string) error {
	accountID, _ := accountDetails(acct)
	return e.record(ctx, ActionCallPlaced, SeverityInfo, OutcomeSuccess,
		ResourceCall, providerRef, CategoryTelephony, nil,
		"account_id", accountID,
		"destination", destination,
	)
}

// OnCallSettled implements plugin.OnCallSettled.
func (e *Extension) OnCallSettled(ctx context.Context, acct, event interface{}) error {
	accountID, _ := accountDetails(acct)
	ref, cost, duration := eventDetails(event)
	return e.record(ctx, ActionCallSettled, SeverityInfo, OutcomeSuccess,
		ResourceCall, ref, CategoryLedger, nil,
		"account_id", accountID,
		"cost", cost,
		"duration_seconds", duration,
	)
}

// OnMessageSent implements plugin.OnMessageSent.
func (e *Extension) OnMessageSent(ctx context.Context, acct, event interface{}) error {
	accountID, _ := accountDetails(acct)
	ref, cost, _ := eventDetails(event)
	return e.record(ctx, ActionMessageSent, SeverityInfo, OutcomeSuccess,
		ResourceMessage, ref, CategoryTelephony, nil,
		"account_id", accountID,
		"cost", cost,
	)
}

// OnMessageRefunded implements plugin.OnMessageRefunded.
func (e *Extension) OnMessageRefunded(ctx context.Context, acct, event interface{}, cause error) error {
	accountID, _ := accountDetails(acct)
	_, cost, _ := eventDetails(event)
	return e.record(ctx, ActionMessageRefunded, SeverityWarning, OutcomePartial,
		ResourceMessage, accountID, CategoryLedger, cause,
		"refund", cost,
	)
}

// ──────────────────────────────────────────────────
// Maintenance and provider hooks
// ──────────────────────────────────────────────────

// OnUsagePurged implements plugin.OnUsagePurged.
func (e *Extension) OnUsagePurged(ctx context.Context, count int64, elapsed time.Duration) error {
	return e.record(ctx, ActionUsagePurged, SeverityInfo, OutcomeSuccess,
		ResourceUsage, "", CategoryMaintenance, nil,
		"count", count,
		"elapsed", elapsed.String(),
	)
}

// OnProviderError implements plugin.OnProviderError.
func (e *Extension) OnProviderError(ctx context.Context, operation string, cause error) error {
	return e.record(ctx, ActionProviderError, SeverityError, OutcomeFailure,
		ResourceProvider, operation, CategoryIntegration, cause,
		"operation", operation,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// accountDetails pulls the ID and number out of a hook payload.
func accountDetails(acct interface{}) (accountID, number string) {
	if a, ok := acct.(*account.Account); ok && a != nil {
		return a.ID.String(), a.Number
	}
	return "", ""
}

// eventDetails pulls the provider ref, cost, and duration out of a hook payload.
func eventDetails(event interface{}) (ref, cost string, duration int64) {
	if ev, ok := event.(*usage.Event); ok && ev != nil {
		return ev.ProviderRef, ev.Cost.String(), ev.DurationSeconds
	}
	return "", "", 0
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
