package service

import (
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/ledger"
)

const (
	minUsernameLen  = 3
	maxUsernameLen  = 64
	minPasswordLen  = 6
	defaultPlanDays = 30
	maxPlanDays     = 36500
)

func validateCredentials(username, password string) error {
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return errs.Invalid("username", "must be 3 to 64 characters")
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return errs.Invalid("password", "must be at least 6 characters")
	}
	return nil
}

func validateNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return errs.Invalid(field, "must not be negative")
	}
	return ledger.ValidateAmount(field, d)
}
