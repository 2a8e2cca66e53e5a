package dialtone

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("dialtone: not found")
	ErrAlreadyExists = errors.New("dialtone: already exists")
	ErrInvalidInput  = errors.New("dialtone: invalid input")

	// Account errors
	ErrAccountNotFound      = errors.New("dialtone: account not found")
	ErrAuthenticationFailed = errors.New("dialtone: authentication failed")
	ErrUnknownCaller        = errors.New("dialtone: caller identity not bound to an account")

	// Number allocation errors
	ErrNumberTaken         = errors.New("dialtone: dialable number already taken")
	ErrAllocationExhausted = errors.New("dialtone: dialable number allocation exhausted")

	// Ledger errors
	ErrInsufficientFunds = errors.New("dialtone: insufficient funds")
	ErrAmountNotPositive = errors.New("dialtone: amount must be positive")

	// Settlement errors
	ErrDuplicateEvent = errors.New("dialtone: duplicate usage event")

	// Provider errors
	ErrProviderUnavailable = errors.New("dialtone: telephony provider unavailable")

	// Store errors
	ErrStoreNotReady     = errors.New("dialtone: store not ready")
	ErrStoreClosed       = errors.New("dialtone: store is closed")
	ErrTransactionFailed = errors.New("dialtone: transaction failed")
	ErrMigrationFailed   = errors.New("dialtone: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("dialtone: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrUnknownCaller)
}

// IsConflict returns true if the error indicates a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNumberTaken) ||
		errors.Is(err, ErrDuplicateEvent)
}

// IsFundsError returns true if the error is related to balance/funds.
func IsFundsError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrProviderUnavailable)
}
