package extension

import "time"

// Config holds the Dialtone extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.dialtone" or "dialtone" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Currency is the ISO 4217 code all wallet amounts use (default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// WelcomeCreditMicros is the one-time credit for new accounts in
	// millionths of the major unit (default: 1000000 = $1.00).
	WelcomeCreditMicros int64 `json:"welcome_credit_micros" mapstructure:"welcome_credit_micros" yaml:"welcome_credit_micros"`

	// CallRateMicros is the per-minute charge for completed calls
	// (default: 50000 = $0.05).
	CallRateMicros int64 `json:"call_rate_micros" mapstructure:"call_rate_micros" yaml:"call_rate_micros"`

	// MessageRateMicros is the flat charge per outbound message
	// (default: 50000 = $0.05).
	MessageRateMicros int64 `json:"message_rate_micros" mapstructure:"message_rate_micros" yaml:"message_rate_micros"`

	// MinCallBalanceMicros is the balance required to originate a call
	// (default: 500000 = $0.50).
	MinCallBalanceMicros int64 `json:"min_call_balance_micros" mapstructure:"min_call_balance_micros" yaml:"min_call_balance_micros"`

	// NumberPrefix is the dialable number plan prefix (default: "+1820").
	NumberPrefix string `json:"number_prefix" mapstructure:"number_prefix" yaml:"number_prefix"`

	// NumberSuffixDigits is the count of random digits after the prefix
	// (default: 7).
	NumberSuffixDigits int `json:"number_suffix_digits" mapstructure:"number_suffix_digits" yaml:"number_suffix_digits"`

	// CallbackURL is where the carrier posts call status events.
	CallbackURL string `json:"callback_url" mapstructure:"callback_url" yaml:"callback_url"`

	// UsageRetention purges usage events older than this window.
	// Zero disables the retention janitor.
	UsageRetention time.Duration `json:"usage_retention" mapstructure:"usage_retention" yaml:"usage_retention"`

	// RetentionInterval is how often the retention janitor runs (default: 1h).
	RetentionInterval time.Duration `json:"retention_interval" mapstructure:"retention_interval" yaml:"retention_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:             "usd",
		WelcomeCreditMicros:  1_000_000,
		CallRateMicros:       50_000,
		MessageRateMicros:    50_000,
		MinCallBalanceMicros: 500_000,
		NumberPrefix:         "+1820",
		NumberSuffixDigits:   7,
		RetentionInterval:    time.Hour,
	}
}
