// Package extension provides the Forge extension adapter for Dialtone.
//
// It implements the forge.Extension interface to integrate the Dialtone
// wallet into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.dialtone" or
// "dialtone" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/dialtone"
	"github.com/xraph/dialtone/number"
	"github.com/xraph/dialtone/store"
	"github.com/xraph/dialtone/store/memory"
	"github.com/xraph/dialtone/telco"
	"github.com/xraph/dialtone/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "dialtone"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Prepaid calling and messaging wallet"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Dialtone as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *dialtone.Wallet
	store      store.Store
	provider   telco.Provider
	walletOpts []dialtone.Option
}

// New creates a new Dialtone Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Wallet instance.
// This is nil until Register is called.
func (e *Extension) Engine() *dialtone.Wallet { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the wallet engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build wallet options from resolved config.
	opts, err := e.buildWalletOpts()
	if err != nil {
		return err
	}

	e.engine = dialtone.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*dialtone.Wallet, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("dialtone: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("dialtone: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildWalletOpts constructs dialtone.Option values from the resolved config.
func (e *Extension) buildWalletOpts() ([]dialtone.Option, error) {
	currency := e.config.Currency
	opts := make([]dialtone.Option, 0, len(e.walletOpts)+8)

	if e.config.WelcomeCreditMicros > 0 {
		opts = append(opts, dialtone.WithWelcomeCredit(types.Micros(e.config.WelcomeCreditMicros, currency)))
	}
	if e.config.CallRateMicros > 0 {
		opts = append(opts, dialtone.WithCallRate(types.Micros(e.config.CallRateMicros, currency)))
	}
	if e.config.MessageRateMicros > 0 {
		opts = append(opts, dialtone.WithMessageRate(types.Micros(e.config.MessageRateMicros, currency)))
	}
	if e.config.MinCallBalanceMicros > 0 {
		opts = append(opts, dialtone.WithMinCallBalance(types.Micros(e.config.MinCallBalanceMicros, currency)))
	}

	if e.config.NumberPrefix != "" || e.config.NumberSuffixDigits > 0 {
		defaults := DefaultConfig()
		prefix := e.config.NumberPrefix
		if prefix == "" {
			prefix = defaults.NumberPrefix
		}
		digits := e.config.NumberSuffixDigits
		if digits == 0 {
			digits = defaults.NumberSuffixDigits
		}
		gen, err := number.NewGenerator(
			number.WithPrefix(prefix),
			number.WithSuffixDigits(digits),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dialtone.WithNumberPlan(gen))
	}

	if e.config.CallbackURL != "" {
		opts = append(opts, dialtone.WithCallbackURL(e.config.CallbackURL))
	}
	if e.config.UsageRetention > 0 {
		opts = append(opts, dialtone.WithUsageRetention(e.config.UsageRetention, e.config.RetentionInterval))
	}

	if e.provider != nil {
		opts = append(opts, dialtone.WithProvider(e.provider))
	}

	// Append any pass-through wallet options.
	opts = append(opts, e.walletOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("dialtone: configuration is required but not found in config files; " +
				"ensure 'extensions.dialtone' or 'dialtone' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("dialtone: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("currency", e.config.Currency),
		forge.F("welcome_credit_micros", e.config.WelcomeCreditMicros),
		forge.F("call_rate_micros", e.config.CallRateMicros),
		forge.F("message_rate_micros", e.config.MessageRateMicros),
		forge.F("number_prefix", e.config.NumberPrefix),
		forge.F("usage_retention", e.config.UsageRetention),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.dialtone" first (namespaced pattern).
	if cm.IsSet("extensions.dialtone") {
		if err := cm.Bind("extensions.dialtone", &cfg); err == nil {
			e.Logger().Debug("dialtone: loaded config from file",
				forge.F("key", "extensions.dialtone"),
			)
			return cfg, true
		}
		e.Logger().Warn("dialtone: failed to bind extensions.dialtone config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "dialtone" key.
	if cm.IsSet("dialtone") {
		if err := cm.Bind("dialtone", &cfg); err == nil {
			e.Logger().Debug("dialtone: loaded config from file",
				forge.F("key", "dialtone"),
			)
			return cfg, true
		}
		e.Logger().Warn("dialtone: failed to bind dialtone config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.WelcomeCreditMicros == 0 {
		cfg.WelcomeCreditMicros = defaults.WelcomeCreditMicros
	}
	if cfg.CallRateMicros == 0 {
		cfg.CallRateMicros = defaults.CallRateMicros
	}
	if cfg.MessageRateMicros == 0 {
		cfg.MessageRateMicros = defaults.MessageRateMicros
	}
	if cfg.MinCallBalanceMicros == 0 {
		cfg.MinCallBalanceMicros = defaults.MinCallBalanceMicros
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = defaults.NumberPrefix
	}
	if cfg.NumberSuffixDigits == 0 {
		cfg.NumberSuffixDigits = defaults.NumberSuffixDigits
	}
	if cfg.RetentionInterval == 0 {
		cfg.RetentionInterval = defaults.RetentionInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Currency == "" && programmaticConfig.Currency != "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.NumberPrefix == "" && programmaticConfig.NumberPrefix != "" {
		yamlConfig.NumberPrefix = programmaticConfig.NumberPrefix
	}
	if yamlConfig.CallbackURL == "" && programmaticConfig.CallbackURL != "" {
		yamlConfig.CallbackURL = programmaticConfig.CallbackURL
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.WelcomeCreditMicros == 0 && programmaticConfig.WelcomeCreditMicros != 0 {
		yamlConfig.WelcomeCreditMicros = programmaticConfig.WelcomeCreditMicros
	}
	if yamlConfig.CallRateMicros == 0 && programmaticConfig.CallRateMicros != 0 {
		yamlConfig.CallRateMicros = programmaticConfig.CallRateMicros
	}
	if yamlConfig.MessageRateMicros == 0 && programmaticConfig.MessageRateMicros != 0 {
		yamlConfig.MessageRateMicros = programmaticConfig.MessageRateMicros
	}
	if yamlConfig.MinCallBalanceMicros == 0 && programmaticConfig.MinCallBalanceMicros != 0 {
		yamlConfig.MinCallBalanceMicros = programmaticConfig.MinCallBalanceMicros
	}
	if yamlConfig.NumberSuffixDigits == 0 && programmaticConfig.NumberSuffixDigits != 0 {
		yamlConfig.NumberSuffixDigits = programmaticConfig.NumberSuffixDigits
	}
	if yamlConfig.UsageRetention == 0 && programmaticConfig.UsageRetention != 0 {
		yamlConfig.UsageRetention = programmaticConfig.UsageRetention
	}
	if yamlConfig.RetentionInterval == 0 && programmaticConfig.RetentionInterval != 0 {
		yamlConfig.RetentionInterval = programmaticConfig.RetentionInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
