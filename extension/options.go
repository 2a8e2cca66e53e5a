package extension

import (
	"time"

	"github.com/xraph/dialtone"
	"github.com/xraph/dialtone/plugin"
	"github.com/xraph/dialtone/store"
	"github.com/xraph/dialtone/telco"
)

// Option configures the Dialtone Forge extension.
type Option func(*Extension)

// WithStore sets the store for the wallet engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithProvider sets the telephony provider for the wallet engine.
func WithProvider(p telco.Provider) Option {
	return func(e *Extension) {
		e.provider = p
	}
}

// WithWalletOption passes a dialtone.Option through to the underlying engine.
func WithWalletOption(opt dialtone.Option) Option {
	return func(e *Extension) {
		e.walletOpts = append(e.walletOpts, opt)
	}
}

// WithPlugin registers a wallet plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.walletOpts = append(e.walletOpts, dialtone.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCallbackURL sets where the carrier posts call status events.
func WithCallbackURL(url string) Option {
	return func(e *Extension) { e.config.CallbackURL = url }
}

// WithNumberPlan sets the dialable number plan.
func WithNumberPlan(prefix string, suffixDigits int) Option {
	return func(e *Extension) {
		e.config.NumberPrefix = prefix
		e.config.NumberSuffixDigits = suffixDigits
	}
}

// WithUsageRetention enables the retention janitor with the given window
// and run interval.
func WithUsageRetention(retention, interval time.Duration) Option {
	return func(e *Extension) {
		e.config.UsageRetention = retention
		e.config.RetentionInterval = interval
	}
}
