package bazaar

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. Every raised error
// guarantees the enclosing call left state, balances, and events exactly as
// they were before the call; nothing is retried internally.
var (
	// General errors
	ErrNotFound      = errors.New("bazaar: not found")
	ErrAlreadyExists = errors.New("bazaar: already exists")
	ErrInvalidInput  = errors.New("bazaar: invalid input")
	ErrUnauthorized  = errors.New("bazaar: unauthorized")

	// Config errors
	ErrInvalidRecipient        = errors.New("bazaar: fee recipient is the null identity")
	ErrDeploymentNotConfigured = errors.New("bazaar: deployment cost not configured")
	ErrInvalidPercentage       = errors.New("bazaar: percentage out of range")
	ErrInvalidAmount           = errors.New("bazaar: amount must not be negative")

	// Registry errors
	ErrProductNotFound = errors.New("bazaar: product not found")
	ErrDuplicateHash   = errors.New("bazaar: content hash already registered")
	ErrNotCreator      = errors.New("bazaar: caller is not the product creator")

	// Currency errors
	ErrCurrencyNotApproved   = errors.New("bazaar: currency not approved")
	ErrCurrencyNotForProduct = errors.New("bazaar: currency not accepted by product")

	// Settlement errors
	ErrPaused             = errors.New("bazaar: system is paused")
	ErrReentrantCall      = errors.New("bazaar: reentrant call")
	ErrTransferFailed     = errors.New("bazaar: ledger transfer failed")
	ErrTransfersDisabled  = errors.New("bazaar: access token transfers disabled")
	ErrSettlementNotFound = errors.New("bazaar: settlement record not found")

	// Store errors
	ErrStoreNotReady     = errors.New("bazaar: store not ready")
	ErrStoreClosed       = errors.New("bazaar: store is closed")
	ErrTransactionFailed = errors.New("bazaar: transaction failed")
	ErrMigrationFailed   = errors.New("bazaar: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("bazaar: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrSettlementNotFound)
}

// IsCurrencyError returns true if the error concerns currency approval or
// acceptance.
func IsCurrencyError(err error) bool {
	return errors.Is(err, ErrCurrencyNotApproved) ||
		errors.Is(err, ErrCurrencyNotForProduct)
}

// IsConfigError returns true if the error concerns settlement configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidRecipient) ||
		errors.Is(err, ErrDeploymentNotConfigured) ||
		errors.Is(err, ErrInvalidPercentage) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried on a fresh call. ErrReentrantCall is retryable by construction:
// the guard clears when the in-flight call exits.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrReentrantCall) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
