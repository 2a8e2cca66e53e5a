package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"
	ActionCreditGranted  = "credit.granted"

	// Ledger actions
	ActionBalanceAdjusted   = "balance.adjusted"
	ActionInsufficientFunds = "funds.insufficient"

	// Call actions
	ActionCallPlaced  = "call.placed"
	ActionCallSettled = "call.settled"

	// Message actions
	ActionMessageSent     = "message.sent"
	ActionMessageRefunded = "message.refunded"

	// Maintenance and provider actions
	ActionUsagePurged   = "usage.purged"
	ActionProviderError = "provider.error"
)

// Resource constants for audit events.
const (
	ResourceAccount  = "account"
	ResourceBalance  = "balance"
	ResourceCall     = "call"
	ResourceMessage  = "message"
	ResourceUsage    = "usage"
	ResourceProvider = "provider"
)

// Category constants for audit events.
const (
	CategoryAccount     = "account"
	CategoryLedger      = "ledger"
	CategoryTelephony   = "telephony"
	CategoryMaintenance = "maintenance"
	CategoryIntegration = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
