package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	pkgcrypto "github.com/and161185/reseller-portal/internal/crypto"
	"github.com/and161185/reseller-portal/internal/ledger"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/repository"
	"github.com/and161185/reseller-portal/internal/repository/memory"
)

var cheapHasher = pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, MemoryKiB: 1024, Threads: 1, KeyLen: 32})

type env struct {
	store  *memory.Store
	prov   *Provisioner
	portal *Portal
	admin  *model.Admin
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	prov := NewProvisioner(st, cheapHasher, zaptest.NewLogger(t), nil)
	admin := &model.Admin{Identity: model.Identity{ID: mustID(), Username: "root"}}
	if err := st.Directory().Insert(context.Background(), admin); err != nil {
		t.Fatalf("insert admin: %v", err)
	}
	return &env{store: st, prov: prov, portal: NewPortal(st, prov), admin: admin}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// subadminWith creates a subadmin funded with balance.
func (e *env) subadminWith(t *testing.T, name, balance string) *model.Subadmin {
	t.Helper()
	sa, err := e.prov.CreateSubadmin(context.Background(), SubadminRequest{Username: name, Password: "secret1", InitialBalance: dec(balance)})
	if err != nil {
		t.Fatalf("CreateSubadmin: %v", err)
	}
	return sa
}

// sellerWith creates an admin-path seller with the given balance and charge.
func (e *env) sellerWith(t *testing.T, name, balance, charge string) *model.Seller {
	t.Helper()
	s, err := e.prov.CreateSeller(context.Background(), SellerRequest{
		Username: name, Password: "secret1", InitialBalance: dec(balance), UserCreationCharge: dec(charge),
	})
	if err != nil {
		t.Fatalf("CreateSeller: %v", err)
	}
	return s
}

func (e *env) reload(t *testing.T, p model.Principal) model.Principal {
	t.Helper()
	got, err := e.store.Directory().FindByID(context.Background(), p.Ident().ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	return got
}

func (e *env) balance(t *testing.T, p model.Principal) decimal.Decimal {
	t.Helper()
	w, ok := model.WalletOf(e.reload(t, p))
	if !ok {
		t.Fatalf("%s has no wallet", p.Ident().Username)
	}
	return w.Balance
}

func (e *env) history(t *testing.T, p model.Principal) []model.Transaction {
	t.Helper()
	h, err := e.store.Ledger().History(context.Background(), p.Ident().ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	return h
}

// assertLedgerConsistent checks balance == sum(transactions) for every wallet.
func (e *env) assertLedgerConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	l := ledger.New(e.store.Ledger(), nil)
	for _, role := range []model.Role{model.RoleAdmin, model.RoleSubadmin, model.RoleSeller} {
		ps, err := e.store.Directory().ListByRole(ctx, role, repository.ListFilter{})
		if err != nil {
			t.Fatalf("ListByRole: %v", err)
		}
		for _, p := range ps {
			if _, err := l.Reconcile(ctx, p.Ident().ID); err != nil {
				t.Fatalf("reconcile %s: %v", p.Ident().Username, err)
			}
		}
	}
}
