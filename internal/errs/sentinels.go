// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested principal does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates a valid credential acting outside its role or ownership scope.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateUsername indicates a unique constraint violation on username.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInsufficientBalance is matched by *InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrValidation is matched by *ValidationError.
	ErrValidation = errors.New("validation")
	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
	// ErrAdminExists is returned by bootstrap once an admin is present.
	ErrAdminExists = errors.New("admin account already exists")
	// ErrLedgerMismatch indicates a cached balance that differs from its transaction log.
	ErrLedgerMismatch = errors.New("ledger mismatch")
	// ErrInternal wraps store failures (connection loss, commit errors).
	ErrInternal = errors.New("internal error")
)

// InsufficientBalanceError carries the figures the caller needs to explain a funding failure.
type InsufficientBalanceError struct {
	Required decimal.Decimal
	Current  decimal.Decimal
	Shortage decimal.Decimal
}

// NewInsufficientBalance builds the error; shortage is required minus current.
func NewInsufficientBalance(required, current decimal.Decimal) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		Required: required,
		Current:  current,
		Shortage: required.Sub(current),
	}
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: required %s, current %s, shortage %s",
		e.Required.StringFixed(2), e.Current.StringFixed(2), e.Shortage.StringFixed(2))
}

// Is makes errors.Is(err, ErrInsufficientBalance) hold.
func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return "validation: " + e.Field + ": " + e.Reason
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Internal marks err as a store failure while keeping it inspectable.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
