package multitoken

import (
	"errors"
	"fmt"

	"github.com/xraph/multitoken/store"
	"github.com/xraph/multitoken/token"
)

// Sentinel errors for common failure scenarios.
var (
	// Transfer errors
	ErrTokenNotFound       = errors.New("multitoken: token not found")
	ErrSameAccount         = errors.New("multitoken: sender and receiver must differ")
	ErrUnauthorized        = errors.New("multitoken: unauthorized")
	ErrSenderNotApproved   = errors.New("multitoken: sender not approved")
	ErrApprovalMismatch    = errors.New("multitoken: approval id mismatch")
	ErrInsufficientBalance = errors.New("multitoken: amount exceeds balance")
	ErrNotATokenHolder     = errors.New("multitoken: not a token holder")
	ErrLengthMismatch      = errors.New("multitoken: number of token ids and amounts must be equal")
	ErrEmptyBatch          = errors.New("multitoken: empty batch")

	// Token management errors
	ErrTokenExists       = errors.New("multitoken: token already exists")
	ErrNotLedgerOwner    = errors.New("multitoken: caller is not the ledger owner")
	ErrNotNonFungible    = errors.New("multitoken: token is not non-fungible")
	ErrApprovalsDisabled = errors.New("multitoken: approval extension disabled")
	ErrMetadataDisabled  = errors.New("multitoken: metadata extension disabled")

	// Transfer-and-notify errors
	ErrTransferNotFound = errors.New("multitoken: pending transfer not found")
	ErrNoReceiver       = errors.New("multitoken: no receiver registered")
	ErrPendingExpired   = errors.New("multitoken: pending transfer expired")

	// Lifecycle errors
	ErrNotStarted     = errors.New("multitoken: ledger not started")
	ErrStopped        = errors.New("multitoken: ledger stopped")
	ErrLedgerNotEmpty = errors.New("multitoken: store holds records but no ledger header")
	ErrHeaderMismatch = errors.New("multitoken: configuration does not match stored ledger")
)

// Validation errors are defined next to the types they validate and
// re-exported here.
var (
	ErrInvalidTokenID = token.ErrInvalidID
	ErrInvalidAccount = token.ErrInvalidAccount
	ErrInvalidType    = token.ErrInvalidType
	ErrInvalidAmount  = token.ErrInvalidAmount
	ErrAmountOverflow = token.ErrAmountOverflow
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("multitoken: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "multitoken: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multitoken: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap lets errors.Is and errors.As see every collected error.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrorOrNil returns e if it holds any error, nil otherwise.
func (e MultiError) ErrorOrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTransferNotFound) ||
		errors.Is(err, store.ErrNotFound)
}

// IsAuthorization returns true if the caller was not allowed to perform the
// operation.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrSenderNotApproved) ||
		errors.Is(err, ErrApprovalMismatch) ||
		errors.Is(err, ErrNotLedgerOwner)
}

// IsInvalidInput returns true if the request itself was malformed.
func IsInvalidInput(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrInvalidTokenID) ||
		errors.Is(err, ErrInvalidAccount) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNotNonFungible) ||
		errors.Is(err, ErrApprovalsDisabled) ||
		errors.Is(err, ErrMetadataDisabled)
}

// IsConflict returns true if the request was well formed but the ledger's
// current state does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotATokenHolder) ||
		errors.Is(err, ErrTokenExists) ||
		errors.Is(err, ErrAmountOverflow)
}
