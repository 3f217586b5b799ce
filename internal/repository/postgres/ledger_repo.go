package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/ids"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/repository"
)

// LedgerRepo implements LedgerRepository using PostgreSQL.
type LedgerRepo struct{ q Querier }

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// NewLedgerRepo constructs a ledger repository over a pool or a transaction.
func NewLedgerRepo(q Querier) *LedgerRepo { return &LedgerRepo{q: q} }

// Append updates the cached balance and inserts the log entry in a single statement,
// so the pair is atomic even outside WithinTx.
func (r *LedgerRepo) Append(
	ctx context.Context, principalID uuid.UUID, signedAmount decimal.Decimal, description string,
) (model.Transaction, error) {
	const q = `
WITH upd AS (
  UPDATE principals SET balance = balance + $3::numeric
  WHERE id = $2 AND role <> 'user'
  RETURNING id, balance
)
INSERT INTO wallet_transactions (id, principal_id, amount, balance_after, description)
SELECT $1, upd.id, $3::numeric, upd.balance, $4 FROM upd
RETURNING balance_after::text, created_at`
	t := model.Transaction{
		ID:          ids.NewTransactionID(),
		PrincipalID: principalID,
		Amount:      signedAmount,
		Description: description,
	}
	var after string
	if err := r.q.QueryRow(ctx, q, t.ID, principalID, signedAmount.String(), description).Scan(&after, &t.CreatedAt); err != nil {
		return model.Transaction{}, notFoundOr(err)
	}
	bal, err := decimal.NewFromString(after)
	if err != nil {
		return model.Transaction{}, errs.Internal(fmt.Errorf("parse balance_after %q: %w", after, err))
	}
	t.BalanceAfter = bal
	return t, nil
}

// LockBalance reads the wallet balance with FOR UPDATE.
func (r *LedgerRepo) LockBalance(ctx context.Context, principalID uuid.UUID) (decimal.Decimal, error) {
	const q = `SELECT balance::text FROM principals WHERE id=$1 AND role <> 'user' FOR UPDATE`
	var s string
	if err := r.q.QueryRow(ctx, q, principalID).Scan(&s); err != nil {
		return decimal.Zero, notFoundOr(err)
	}
	bal, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errs.Internal(fmt.Errorf("parse balance %q: %w", s, err))
	}
	return bal, nil
}

// History lists wallet transactions in append order.
func (r *LedgerRepo) History(ctx context.Context, principalID uuid.UUID) ([]model.Transaction, error) {
	const q = `
SELECT id, principal_id, amount::text, balance_after::text, description, created_at
FROM wallet_transactions
WHERE principal_id=$1
ORDER BY created_at ASC, id ASC`
	rows, err := r.q.Query(ctx, q, principalID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	defer rows.Close()

	out := []model.Transaction{}
	for rows.Next() {
		var (
			t             model.Transaction
			amount, after string
			ts            time.Time
		)
		if err := rows.Scan(&t.ID, &t.PrincipalID, &amount, &after, &t.Description, &ts); err != nil {
			return nil, errs.Internal(err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, errs.Internal(fmt.Errorf("parse amount %q: %w", amount, err))
		}
		if t.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, errs.Internal(fmt.Errorf("parse balance_after %q: %w", after, err))
		}
		t.CreatedAt = ts
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal(err)
	}
	return out, nil
}

// Totals returns the cached balance next to the recomputed log sum.
func (r *LedgerRepo) Totals(ctx context.Context, principalID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	const q = `
SELECT p.balance::text,
       COALESCE((SELECT SUM(t.amount) FROM wallet_transactions t WHERE t.principal_id = p.id), 0)::text
FROM principals p
WHERE p.id=$1 AND p.role <> 'user'`
	var cachedS, loggedS string
	if err := r.q.QueryRow(ctx, q, principalID).Scan(&cachedS, &loggedS); err != nil {
		return decimal.Zero, decimal.Zero, notFoundOr(err)
	}
	cached, err := decimal.NewFromString(cachedS)
	if err != nil {
		return decimal.Zero, decimal.Zero, errs.Internal(err)
	}
	logged, err := decimal.NewFromString(loggedS)
	if err != nil {
		return decimal.Zero, decimal.Zero, errs.Internal(err)
	}
	return cached, logged, nil
}
