// Package memory is an in-process repository.Store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/ids"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/repository"
)

type record struct {
	attrs model.Attributes
	seq   uint64
}

// Store serializes every unit of work behind one mutex. Writes made inside
// WithinTx are journaled and undone in reverse when fn fails.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     uint64
	byID    map[uuid.UUID]*record
	byName  map[string]uuid.UUID
	ledger  map[uuid.UUID][]model.Transaction
	adminID uuid.UUID
}

var _ repository.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		now:    time.Now,
		byID:   map[uuid.UUID]*record{},
		byName: map[string]uuid.UUID{},
		ledger: map[uuid.UUID][]model.Transaction{},
	}
}

// Directory returns a directory repository that locks per call.
func (s *Store) Directory() repository.DirectoryRepository { return &view{s: s} }

// Ledger returns a ledger repository that locks per call.
func (s *Store) Ledger() repository.LedgerRepository { return &view{s: s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// WithinTx holds the store lock for the duration of fn. fn must use the
// repositories it is handed; the outer ones would deadlock.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &view{s: s, inTx: true}
	defer func() {
		if r := recover(); r != nil {
			v.rollback()
			panic(r)
		}
	}()
	if err := fn(ctx, v); err != nil {
		v.rollback()
		return err
	}
	return nil
}

// view implements both repositories. Outside a transaction each call takes the lock.
type view struct {
	s    *Store
	inTx bool
	undo []func()
}

func (v *view) Directory() repository.DirectoryRepository { return v }
func (v *view) Ledger() repository.LedgerRepository       { return v }

func (v *view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func (v *view) rollback() {
	for i := len(v.undo) - 1; i >= 0; i-- {
		v.undo[i]()
	}
	v.undo = nil
}

func (v *view) journal(f func()) {
	if v.inTx {
		v.undo = append(v.undo, f)
	}
}

func (v *view) FindByUsername(_ context.Context, username string) (model.Principal, error) {
	defer v.lock()()
	id, ok := v.s.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return v.s.materialize(v.s.byID[id])
}

func (v *view) FindByID(_ context.Context, id uuid.UUID) (model.Principal, error) {
	defer v.lock()()
	r, ok := v.s.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return v.s.materialize(r)
}

// LockByID is FindByID; the store lock already serializes the transaction.
func (v *view) LockByID(ctx context.Context, id uuid.UUID) (model.Principal, error) {
	return v.FindByID(ctx, id)
}

func (v *view) Insert(_ context.Context, p model.Principal) error {
	defer v.lock()()
	s := v.s
	a := model.Flatten(p)
	if _, taken := s.byName[a.Username]; taken {
		return errs.ErrDuplicateUsername
	}
	if a.Role == model.RoleAdmin && s.adminID != uuid.Nil {
		return errs.ErrAdminExists
	}
	if _, taken := s.byID[a.ID]; taken {
		return errs.Internal(fmt.Errorf("duplicate principal id %s", a.ID))
	}

	s.seq++
	a.CreatedAt = s.now().UTC()
	a.Balance = decimal.Zero
	a.Children = nil
	a.Devices = append([]string{}, a.Devices...)
	s.byID[a.ID] = &record{attrs: a, seq: s.seq}
	s.byName[a.Username] = a.ID
	if a.Role == model.RoleAdmin {
		s.adminID = a.ID
	}
	p.Ident().CreatedAt = a.CreatedAt

	v.journal(func() {
		delete(s.byID, a.ID)
		delete(s.byName, a.Username)
		delete(s.ledger, a.ID)
		if s.adminID == a.ID {
			s.adminID = uuid.Nil
		}
	})
	return nil
}

func (v *view) ListByRole(_ context.Context, role model.Role, f repository.ListFilter) ([]model.Principal, error) {
	defer v.lock()()
	recs := v.s.sorted(func(a *model.Attributes) bool {
		if a.Role != role {
			return false
		}
		if f.CreatedBy == nil {
			return true
		}
		return a.CreatedBy != nil && *a.CreatedBy == *f.CreatedBy
	})
	out := make([]model.Principal, 0, len(recs))
	for _, r := range recs {
		p, err := v.s.materialize(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (v *view) CountByRole(_ context.Context, role model.Role) (int, error) {
	defer v.lock()()
	n := 0
	for _, r := range v.s.byID {
		if r.attrs.Role == role {
			n++
		}
	}
	return n, nil
}

func (v *view) Remove(_ context.Context, id uuid.UUID) error {
	defer v.lock()()
	s := v.s
	r, ok := s.byID[id]
	if !ok || r.attrs.Role != model.RoleUser {
		return errs.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byName, r.attrs.Username)
	v.journal(func() {
		s.byID[id] = r
		s.byName[r.attrs.Username] = id
	})
	return nil
}

func (v *view) SetDevices(_ context.Context, id uuid.UUID, devices []string) error {
	defer v.lock()()
	r, ok := v.s.byID[id]
	if !ok || r.attrs.Role != model.RoleUser {
		return errs.ErrNotFound
	}
	prev := r.attrs.Devices
	r.attrs.Devices = append([]string{}, devices...)
	v.journal(func() { r.attrs.Devices = prev })
	return nil
}

func (v *view) Append(_ context.Context, principalID uuid.UUID, amount decimal.Decimal, description string) (model.Transaction, error) {
	defer v.lock()()
	s := v.s
	r, ok := s.byID[principalID]
	if !ok || !r.attrs.Role.HasWallet() {
		return model.Transaction{}, errs.ErrNotFound
	}
	prev := r.attrs.Balance
	next := prev.Add(amount)
	t := model.Transaction{
		ID:           ids.NewTransactionID(),
		PrincipalID:  principalID,
		Amount:       amount,
		BalanceAfter: next,
		Description:  description,
		CreatedAt:    s.now().UTC(),
	}
	r.attrs.Balance = next
	s.ledger[principalID] = append(s.ledger[principalID], t)
	v.journal(func() {
		r.attrs.Balance = prev
		log := s.ledger[principalID]
		s.ledger[principalID] = log[:len(log)-1]
	})
	return t, nil
}

func (v *view) LockBalance(_ context.Context, principalID uuid.UUID) (decimal.Decimal, error) {
	defer v.lock()()
	r, ok := v.s.byID[principalID]
	if !ok || !r.attrs.Role.HasWallet() {
		return decimal.Zero, errs.ErrNotFound
	}
	return r.attrs.Balance, nil
}

func (v *view) History(_ context.Context, principalID uuid.UUID) ([]model.Transaction, error) {
	defer v.lock()()
	return append([]model.Transaction{}, v.s.ledger[principalID]...), nil
}

func (v *view) Totals(_ context.Context, principalID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	defer v.lock()()
	r, ok := v.s.byID[principalID]
	if !ok || !r.attrs.Role.HasWallet() {
		return decimal.Zero, decimal.Zero, errs.ErrNotFound
	}
	w := model.Wallet{Transactions: v.s.ledger[principalID]}
	return r.attrs.Balance, w.Sum(), nil
}

// materialize copies r into a fresh Principal with children derived from created_by.
func (s *Store) materialize(r *record) (model.Principal, error) {
	a := r.attrs
	a.Devices = append([]string(nil), r.attrs.Devices...)
	if _, tracks := a.Role.ChildRole(); tracks {
		for _, c := range s.sorted(func(c *model.Attributes) bool { return c.CreatedBy != nil && *c.CreatedBy == a.ID }) {
			a.Children = append(a.Children, c.attrs.ID)
		}
	}
	if a.CreatedBy != nil {
		cb := *a.CreatedBy
		a.CreatedBy = &cb
	}
	p, err := a.Principal()
	if err != nil {
		return nil, errs.Internal(err)
	}
	return p, nil
}

func (s *Store) sorted(keep func(a *model.Attributes) bool) []*record {
	var out []*record
	for _, r := range s.byID {
		if keep(&r.attrs) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
