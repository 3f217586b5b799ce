package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/repository"
)

// principalCols selects one principal; children are derived from created_by so the
// list always matches the principals pointing back.
const principalCols = `
p.id, p.username, p.pwd_hash, p.pwd_salt, p.role, p.created_by, p.plan_expiry, p.devices,
p.user_creation_charge::text, p.balance::text, p.created_at,
ARRAY(SELECT c.id::text FROM principals c WHERE c.created_by = p.id ORDER BY c.created_at, c.id)`

// DirectoryRepo implements DirectoryRepository using PostgreSQL.
type DirectoryRepo struct{ q Querier }

var _ repository.DirectoryRepository = (*DirectoryRepo)(nil)

// NewDirectoryRepo constructs a directory repository over a pool or a transaction.
func NewDirectoryRepo(q Querier) *DirectoryRepo { return &DirectoryRepo{q: q} }

// Insert adds a principal row. The wallet starts at zero; seeding goes through the ledger.
func (r *DirectoryRepo) Insert(ctx context.Context, p model.Principal) error {
	const q = `
INSERT INTO principals (id, username, pwd_hash, pwd_salt, role, created_by, plan_expiry, devices, user_creation_charge)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`
	a := model.Flatten(p)
	devices := a.Devices
	if devices == nil {
		devices = []string{}
	}
	var created time.Time
	err := r.q.QueryRow(ctx, q,
		a.ID, a.Username, a.PwdHash, a.PwdSalt, string(a.Role), nullableID(a.CreatedBy),
		a.PlanExpiry, devices, a.UserCreationCharge.String(),
	).Scan(&created)
	if name, ok := uniqueViolation(err); ok {
		if name == singleAdminIndex {
			return errs.ErrAdminExists
		}
		return errs.ErrDuplicateUsername
	}
	if err != nil {
		return errs.Internal(err)
	}
	p.Ident().CreatedAt = created
	return nil
}

// FindByID selects a principal by ID.
func (r *DirectoryRepo) FindByID(ctx context.Context, id uuid.UUID) (model.Principal, error) {
	q := `SELECT` + principalCols + `
FROM principals p WHERE p.id=$1`
	return scanPrincipal(r.q.QueryRow(ctx, q, id))
}

// LockByID selects a principal by ID with FOR UPDATE.
func (r *DirectoryRepo) LockByID(ctx context.Context, id uuid.UUID) (model.Principal, error) {
	q := `SELECT` + principalCols + `
FROM principals p WHERE p.id=$1 FOR UPDATE OF p`
	return scanPrincipal(r.q.QueryRow(ctx, q, id))
}

// FindByUsername selects a principal by username.
func (r *DirectoryRepo) FindByUsername(ctx context.Context, username string) (model.Principal, error) {
	q := `SELECT` + principalCols + `
FROM principals p WHERE p.username=$1`
	return scanPrincipal(r.q.QueryRow(ctx, q, username))
}

// ListByRole returns one tier ordered by creation time.
func (r *DirectoryRepo) ListByRole(ctx context.Context, role model.Role, f repository.ListFilter) ([]model.Principal, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if f.CreatedBy != nil {
		q := `SELECT` + principalCols + `
FROM principals p WHERE p.role=$1 AND p.created_by=$2 ORDER BY p.created_at, p.id`
		rows, err = r.q.Query(ctx, q, string(role), *f.CreatedBy)
	} else {
		q := `SELECT` + principalCols + `
FROM principals p WHERE p.role=$1 ORDER BY p.created_at, p.id`
		rows, err = r.q.Query(ctx, q, string(role))
	}
	if err != nil {
		return nil, errs.Internal(err)
	}
	defer rows.Close()

	out := []model.Principal{}
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal(err)
	}
	return out, nil
}

// CountByRole counts one tier.
func (r *DirectoryRepo) CountByRole(ctx context.Context, role model.Role) (int, error) {
	const q = `SELECT count(*) FROM principals WHERE role=$1`
	var n int
	if err := r.q.QueryRow(ctx, q, string(role)).Scan(&n); err != nil {
		return 0, errs.Internal(err)
	}
	return n, nil
}

// Remove deletes a user row; other roles are never deleted.
func (r *DirectoryRepo) Remove(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM principals WHERE id=$1 AND role='user'`
	tag, err := r.q.Exec(ctx, q, id)
	if err != nil {
		return errs.Internal(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetDevices replaces a user's device list.
func (r *DirectoryRepo) SetDevices(ctx context.Context, id uuid.UUID, devices []string) error {
	const q = `UPDATE principals SET devices=$2 WHERE id=$1 AND role='user'`
	if devices == nil {
		devices = []string{}
	}
	tag, err := r.q.Exec(ctx, q, id, devices)
	if err != nil {
		return errs.Internal(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (model.Principal, error) {
	var (
		a         model.Attributes
		role      string
		createdBy uuid.NullUUID
		charge    string
		balance   string
		children  []string
	)
	err := row.Scan(&a.ID, &a.Username, &a.PwdHash, &a.PwdSalt, &role, &createdBy, &a.PlanExpiry, &a.Devices,
		&charge, &balance, &a.CreatedAt, &children)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if createdBy.Valid {
		id := createdBy.UUID
		a.CreatedBy = &id
	}
	a.Role = model.Role(role)
	if a.UserCreationCharge, err = decimal.NewFromString(charge); err != nil {
		return nil, errs.Internal(fmt.Errorf("parse user_creation_charge %q: %w", charge, err))
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, errs.Internal(fmt.Errorf("parse balance %q: %w", balance, err))
	}
	for _, c := range children {
		id, err := uuid.FromString(c)
		if err != nil {
			return nil, errs.Internal(fmt.Errorf("parse child id %q: %w", c, err))
		}
		a.Children = append(a.Children, id)
	}
	p, err := a.Principal()
	if err != nil {
		return nil, errs.Internal(err)
	}
	return p, nil
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
