// Package observability provides a metrics extension for Dialtone that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/dialtone/plugin"
	"github.com/xraph/dialtone/usage"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated    = (*MetricsExtension)(nil)
	_ plugin.OnCreditGranted     = (*MetricsExtension)(nil)
	_ plugin.OnBalanceAdjusted   = (*MetricsExtension)(nil)
	_ plugin.OnCallPlaced        = (*MetricsExtension)(nil)
	_ plugin.OnCallSettled       = (*MetricsExtension)(nil)
	_ plugin.OnMessageSent       = (*MetricsExtension)(nil)
	_ plugin.OnMessageRefunded   = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientFunds = (*MetricsExtension)(nil)
	_ plugin.OnUsagePurged       = (*MetricsExtension)(nil)
	_ plugin.OnProviderError     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Wallet plugin to automatically track wallet metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsCreated Counter
	CreditsGranted  Counter

	// Ledger metrics
	BalanceAdjustments Counter
	InsufficientFunds  Counter

	// Call metrics
	CallsPlaced  Counter
	CallsSettled Counter
	CallDuration Histogram
	CallCost     Histogram

	// Message metrics
	MessagesSent     Counter
	MessagesRefunded Counter

	// Maintenance metrics
	UsagePurged  Counter
	PurgeLatency Histogram

	// Error metrics
	ProviderErrors Counter
	StoreErrors    Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountsCreated: factory.Counter("dialtone.account.created"),
		CreditsGranted:  factory.Counter("dialtone.credit.granted"),

		// Ledger metrics
		BalanceAdjustments: factory.Counter("dialtone.balance.adjustments"),
		InsufficientFunds:  factory.Counter("dialtone.funds.insufficient"),

		// Call metrics
		CallsPlaced:  factory.Counter("dialtone.call.placed"),
		CallsSettled: factory.Counter("dialtone.call.settled"),
		CallDuration: factory.Histogram("dialtone.call.duration_seconds"),
		CallCost:     factory.Histogram("dialtone.call.cost_micros"),

		// Message metrics
		MessagesSent:     factory.Counter("dialtone.message.sent"),
		MessagesRefunded: factory.Counter("dialtone.message.refunded"),

		// Maintenance metrics
		UsagePurged:  factory.Counter("dialtone.usage.purged"),
		PurgeLatency: factory.Histogram("dialtone.usage.purge.latency_ms"),

		// Error metrics
		ProviderErrors: factory.Counter("dialtone.provider.errors"),
		StoreErrors:    factory.Counter("dialtone.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ interface{}) error {
	m.AccountsCreated.Inc()
	return nil
}

// OnCreditGranted implements plugin.OnCreditGranted.
func (m *MetricsExtension) OnCreditGranted(_ context.Context, _, _ interface{}) error {
	m.CreditsGranted.Inc()
	return nil
}

// OnBalanceAdjusted implements plugin.OnBalanceAdjusted.
func (m *MetricsExtension) OnBalanceAdjusted(_ context.Context, _ string, _, _ interface{}) error {
	m.BalanceAdjustments.Inc()
	return nil
}

// OnInsufficientFunds implements plugin.OnInsufficientFunds.
func (m *MetricsExtension) OnInsufficientFunds(_ context.Context, _, _, _ interface{}) error {
	m.InsufficientFunds.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Call and message hooks
// ──────────────────────────────────────────────────

// OnCallPlaced implements plugin.OnCallPlaced.
func (m *MetricsExtension) OnCallPlaced(_ context.Context, _ interface{}, _, _ string) error {
	m.CallsPlaced.Inc()
	return nil
}

// OnCallSettled implements plugin.OnCallSettled.
func (m *MetricsExtension) OnCallSettled(_ context.Context, _, event interface{}) error {
	m.CallsSettled.Inc()
	if ev, ok := event.(*usage.Event); ok && ev != nil {
		m.CallDuration.Observe(float64(ev.DurationSeconds))
		m.CallCost.Observe(float64(ev.Cost.Amount))
	}
	return nil
}

// OnMessageSent implements plugin.OnMessageSent.
func (m *MetricsExtension) OnMessageSent(_ context.Context, _, _ interface{}) error {
	m.MessagesSent.Inc()
	return nil
}

// OnMessageRefunded implements plugin.OnMessageRefunded.
func (m *MetricsExtension) OnMessageRefunded(_ context.Context, _, _ interface{}, _ error) error {
	m.MessagesRefunded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Maintenance and provider hooks
// ──────────────────────────────────────────────────

// OnUsagePurged implements plugin.OnUsagePurged.
func (m *MetricsExtension) OnUsagePurged(_ context.Context, count int64, elapsed time.Duration) error {
	m.UsagePurged.Add(float64(count))
	m.PurgeLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnProviderError implements plugin.OnProviderError.
func (m *MetricsExtension) OnProviderError(_ context.Context, _ string, _ error) error {
	m.ProviderErrors.Inc()
	return nil
}
