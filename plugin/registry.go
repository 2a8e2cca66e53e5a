package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onAccountCreated    []OnAccountCreated
	onCreditGranted     []OnCreditGranted
	onBalanceAdjusted   []OnBalanceAdjusted
	onCallPlaced        []OnCallPlaced
	onCallSettled       []OnCallSettled
	onMessageSent       []OnMessageSent
	onMessageRefunded   []OnMessageRefunded
	onInsufficientFunds []OnInsufficientFunds
	onUsagePurged       []OnUsagePurged
	onProviderError     []OnProviderError
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnCreditGranted); ok {
		r.onCreditGranted = append(r.onCreditGranted, v)
	}
	if v, ok := p.(OnBalanceAdjusted); ok {
		r.onBalanceAdjusted = append(r.onBalanceAdjusted, v)
	}
	if v, ok := p.(OnCallPlaced); ok {
		r.onCallPlaced = append(r.onCallPlaced, v)
	}
	if v, ok := p.(OnCallSettled); ok {
		r.onCallSettled = append(r.onCallSettled, v)
	}
	if v, ok := p.(OnMessageSent); ok {
		r.onMessageSent = append(r.onMessageSent, v)
	}
	if v, ok := p.(OnMessageRefunded); ok {
		r.onMessageRefunded = append(r.onMessageRefunded, v)
	}
	if v, ok := p.(OnInsufficientFunds); ok {
		r.onInsufficientFunds = append(r.onInsufficientFunds, v)
	}
	if v, ok := p.(OnUsagePurged); ok {
		r.onUsagePurged = append(r.onUsagePurged, v)
	}
	if v, ok := p.(OnProviderError); ok {
		r.onProviderError = append(r.onProviderError, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnAccountCreated)(nil)).Elem(), "OnAccountCreated")
	checkInterface(reflect.TypeOf((*OnCreditGranted)(nil)).Elem(), "OnCreditGranted")
	checkInterface(reflect.TypeOf((*OnBalanceAdjusted)(nil)).Elem(), "OnBalanceAdjusted")
	checkInterface(reflect.TypeOf((*OnCallPlaced)(nil)).Elem(), "OnCallPlaced")
	checkInterface(reflect.TypeOf((*OnCallSettled)(nil)).Elem(), "OnCallSettled")
	checkInterface(reflect.TypeOf((*OnMessageSent)(nil)).Elem(), "OnMessageSent")
	checkInterface(reflect.TypeOf((*OnMessageRefunded)(nil)).Elem(), "OnMessageRefunded")
	checkInterface(reflect.TypeOf((*OnInsufficientFunds)(nil)).Elem(), "OnInsufficientFunds")
	checkInterface(reflect.TypeOf((*OnUsagePurged)(nil)).Elem(), "OnUsagePurged")
	checkInterface(reflect.TypeOf((*OnProviderError)(nil)).Elem(), "OnProviderError")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, wallet interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, wallet)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, acct interface{}) {
	r.mu.RLock()
	plugins := r.onAccountCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountCreated(ctx, acct)
		}); err != nil {
			r.logger.Warn("plugin OnAccountCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCreditGranted emits a welcome credit granted event.
func (r *Registry) EmitCreditGranted(ctx context.Context, acct, amount interface{}) {
	r.mu.RLock()
	plugins := r.onCreditGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCreditGranted(ctx, acct, amount)
		}); err != nil {
			r.logger.Warn("plugin OnCreditGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBalanceAdjusted emits a balance adjusted event.
func (r *Registry) EmitBalanceAdjusted(ctx context.Context, accountID string, delta, newBalance interface{}) {
	r.mu.RLock()
	plugins := r.onBalanceAdjusted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBalanceAdjusted(ctx, accountID, delta, newBalance)
		}); err != nil {
			r.logger.Warn("plugin OnBalanceAdjusted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCallPlaced emits a call placed event.
func (r *Registry) EmitCallPlaced(ctx context.Context, acct interface{}, destination, providerRef string) {
	r.mu.RLock()
	plugins := r.onCallPlaced
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCallPlaced(ctx, acct, destination, providerRef)
		}); err != nil {
			r.logger.Warn("plugin OnCallPlaced failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCallSettled emits a call settled event.
func (r *Registry) EmitCallSettled(ctx context.Context, acct, event interface{}) {
	r.mu.RLock()
	plugins := r.onCallSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCallSettled(ctx, acct, event)
		}); err != nil {
			r.logger.Warn("plugin OnCallSettled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMessageSent emits a message sent event.
func (r *Registry) EmitMessageSent(ctx context.Context, acct, event interface{}) {
	r.mu.RLock()
	plugins := r.onMessageSent
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMessageSent(ctx, acct, event)
		}); err != nil {
			r.logger.Warn("plugin OnMessageSent failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMessageRefunded emits a message refunded event.
func (r *Registry) EmitMessageRefunded(ctx context.Context, acct, event interface{}, cause error) {
	r.mu.RLock()
	plugins := r.onMessageRefunded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMessageRefunded(ctx, acct, event, cause)
		}); err != nil {
			r.logger.Warn("plugin OnMessageRefunded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInsufficientFunds emits an insufficient funds event.
func (r *Registry) EmitInsufficientFunds(ctx context.Context, acct, required, available interface{}) {
	r.mu.RLock()
	plugins := r.onInsufficientFunds
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientFunds(ctx, acct, required, available)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientFunds failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUsagePurged emits a usage purged event.
func (r *Registry) EmitUsagePurged(ctx context.Context, count int64, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onUsagePurged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsagePurged(ctx, count, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnUsagePurged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitProviderError emits a provider error event.
func (r *Registry) EmitProviderError(ctx context.Context, operation string, cause error) {
	r.mu.RLock()
	plugins := r.onProviderError
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnProviderError(ctx, operation, cause)
		}); err != nil {
			r.logger.Warn("plugin OnProviderError failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
