// Package ledger is the only mutator of wallet balances. Every operation
// reduces to Record, which appends one transaction and moves the cached
// balance by the same signed amount.
package ledger

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/obs"
	"github.com/and161185/reseller-portal/internal/repository"
)

// MinorUnits is the number of fractional digits a money amount may carry.
const MinorUnits = 2

// MaxIntegerDigits bounds the integer part of an amount, matching NUMERIC(20,2).
const MaxIntegerDigits = 18

// Ledger applies wallet mutations through one LedgerRepository, usually the
// transaction-bound one handed out by Store.WithinTx.
type Ledger struct {
	repo    repository.LedgerRepository
	metrics *obs.Metrics
}

// New returns a Ledger over repo. metrics may be nil.
func New(repo repository.LedgerRepository, metrics *obs.Metrics) *Ledger {
	return &Ledger{repo: repo, metrics: metrics}
}

// ValidateAmount rejects amounts finer than the minor unit or with more than
// MaxIntegerDigits integer digits. Both checks run on the coefficient and
// exponent before anything is rescaled.
func ValidateAmount(field string, d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	digits := len(new(big.Int).Abs(d.Coefficient()).String())
	exp := int(d.Exponent())
	if digits+exp > MaxIntegerDigits {
		return errs.Invalid(field, fmt.Sprintf("at most %d integer digits", MaxIntegerDigits))
	}
	if exp < -MinorUnits && digits <= -exp-MinorUnits {
		return errs.Invalid(field, fmt.Sprintf("at most %d decimal places", MinorUnits))
	}
	if !d.Equal(d.Truncate(MinorUnits)) {
		return errs.Invalid(field, fmt.Sprintf("at most %d decimal places", MinorUnits))
	}
	return nil
}

// ParseAmount parses a decimal string and validates its precision.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errs.Invalid(field, "not a number")
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}
	if err := ValidateAmount(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Record applies newBalance = oldBalance + signedAmount and appends one entry. It is unchecked.
func (l *Ledger) Record(ctx context.Context, id uuid.UUID, signedAmount decimal.Decimal, description string) (model.Transaction, error) {
	if err := ValidateAmount("amount", signedAmount); err != nil {
		return model.Transaction{}, err
	}
	t, err := l.repo.Append(ctx, id, signedAmount, description)
	if err != nil {
		return model.Transaction{}, err
	}
	l.metrics.WalletTransaction(direction(signedAmount))
	return t, nil
}

// Credit records a strictly positive amount.
func (l *Ledger) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, description string) (model.Transaction, error) {
	if !amount.IsPositive() {
		return model.Transaction{}, errs.Invalid("amount", "credit must be positive")
	}
	return l.Record(ctx, id, amount, description)
}

// Debit locks the wallet, checks it covers amount and records -amount.
// A zero amount is recorded as a zero entry.
func (l *Ledger) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, description string) (model.Transaction, error) {
	if amount.IsNegative() {
		return model.Transaction{}, errs.Invalid("amount", "debit must not be negative")
	}
	if _, err := l.EnsureFunds(ctx, id, amount); err != nil {
		return model.Transaction{}, err
	}
	return l.Record(ctx, id, amount.Neg(), description)
}

// EnsureFunds locks the wallet and returns its balance, or an
// *errs.InsufficientBalanceError when the balance is below amount.
func (l *Ledger) EnsureFunds(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	bal, err := l.repo.LockBalance(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if bal.LessThan(amount) {
		return bal, errs.NewInsufficientBalance(amount, bal)
	}
	return bal, nil
}

// Transfer debits from (checked) and credits to by the same amount. Both wallets
// are locked in id order first so concurrent opposite transfers cannot deadlock.
// It must run inside the caller's transaction for the pair to be atomic.
func (l *Ledger) Transfer(
	ctx context.Context, from, to uuid.UUID, amount decimal.Decimal, fromDesc, toDesc string,
) (debit, credit model.Transaction, err error) {
	if !amount.IsPositive() {
		return debit, credit, errs.Invalid("amount", "transfer must be positive")
	}
	if from == to {
		return debit, credit, errs.Invalid("target", "cannot transfer to the same wallet")
	}
	first, second := from, to
	if bytes.Compare(second.Bytes(), first.Bytes()) < 0 {
		first, second = second, first
	}
	balances := map[uuid.UUID]decimal.Decimal{}
	for _, id := range []uuid.UUID{first, second} {
		bal, err := l.repo.LockBalance(ctx, id)
		if err != nil {
			return debit, credit, err
		}
		balances[id] = bal
	}
	if cur := balances[from]; cur.LessThan(amount) {
		return debit, credit, errs.NewInsufficientBalance(amount, cur)
	}
	if debit, err = l.Record(ctx, from, amount.Neg(), fromDesc); err != nil {
		return model.Transaction{}, model.Transaction{}, err
	}
	if credit, err = l.Record(ctx, to, amount, toDesc); err != nil {
		return model.Transaction{}, model.Transaction{}, err
	}
	return debit, credit, nil
}

// Reconcile recomputes the log sum and compares it with the cached balance.
func (l *Ledger) Reconcile(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	cached, logged, err := l.repo.Totals(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if !cached.Equal(logged) {
		return cached, fmt.Errorf("%w: %s cached %s, log sums to %s",
			errs.ErrLedgerMismatch, id, cached.StringFixed(MinorUnits), logged.StringFixed(MinorUnits))
	}
	return cached, nil
}

func direction(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "credit"
	case -1:
		return "debit"
	}
	return "zero"
}
