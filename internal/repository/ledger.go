package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/reseller-portal/internal/model"
)

// LedgerRepository persists wallet balances and their append-only log.
type LedgerRepository interface {
	// Append adds signedAmount to the cached balance and records one transaction, atomically.
	Append(ctx context.Context, principalID uuid.UUID, signedAmount decimal.Decimal, description string) (model.Transaction, error)
	// LockBalance returns the balance and holds the wallet until the enclosing transaction ends.
	LockBalance(ctx context.Context, principalID uuid.UUID) (decimal.Decimal, error)
	// History returns the wallet's transactions in append order.
	History(ctx context.Context, principalID uuid.UUID) ([]model.Transaction, error)
	// Totals returns the cached balance and the sum of the transaction log.
	Totals(ctx context.Context, principalID uuid.UUID) (cached, logged decimal.Decimal, err error)
}

// Repos groups the repositories that share one transaction.
type Repos interface {
	Directory() DirectoryRepository
	Ledger() LedgerRepository
}

// Store opens units of work spanning directory and ledger.
type Store interface {
	Repos
	// WithinTx runs fn in one transaction; any error returned by fn rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
