package convert

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	portalv1 "github.com/and161185/reseller-portal/api/portal/v1"
	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/model"
)

func TestAmount_TwoDigits(t *testing.T) {
	t.Parallel()

	cases := map[string]string{"0": "0.00", "10": "10.00", "-0.5": "-0.50", "1234.56": "1234.56"}
	for in, want := range cases {
		if got := Amount(decimal.RequireFromString(in)); got != want {
			t.Fatalf("Amount(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	want := uuid.Must(uuid.NewV4())
	got, err := ParseID("id", want.String())
	if err != nil || got != want {
		t.Fatalf("ok: got=%s err=%v", got, err)
	}

	var ve *errs.ValidationError
	if _, err := ParseID("target_id", "nope"); !errors.As(err, &ve) || ve.Field != "target_id" {
		t.Fatalf("want validation on target_id, got %v", err)
	}
	if _, err := ParseID("id", ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation on empty, got %v", err)
	}
}

func TestToAPIPrincipal_SellerWithHistory(t *testing.T) {
	t.Parallel()

	owner := uuid.Must(uuid.NewV4())
	child := uuid.Must(uuid.NewV4())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	s := &model.Seller{
		Identity: model.Identity{
			ID: uuid.Must(uuid.NewV4()), Username: "shop1", PwdHash: []byte("h"), PwdSalt: []byte("s"),
			CreatedBy: &owner, PlanExpiry: now.AddDate(10, 0, 0), CreatedAt: now,
		},
		Wallet: model.Wallet{
			Balance: decimal.NewFromInt(950),
			Transactions: []model.Transaction{
				{ID: "01A", Amount: decimal.NewFromInt(1000), BalanceAfter: decimal.NewFromInt(1000), Description: "Initial balance", CreatedAt: now},
				{ID: "01B", Amount: decimal.NewFromInt(-50), BalanceAfter: decimal.NewFromInt(950), Description: "User creation: u1", CreatedAt: now},
			},
		},
		UserCreationCharge: decimal.NewFromInt(50),
		CreatedChildren:    []uuid.UUID{child},
	}

	got := ToAPIPrincipal(s)
	if got.Role != "seller" || got.CreatedBy != owner.String() {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if got.Wallet == nil || got.Wallet.Balance != "950.00" || len(got.Wallet.Transactions) != 2 {
		t.Fatalf("wallet mismatch: %+v", got.Wallet)
	}
	if got.Wallet.Transactions[1].Amount != "-50.00" || got.Wallet.Transactions[1].BalanceAfter != "950.00" {
		t.Fatalf("tx mismatch: %+v", got.Wallet.Transactions[1])
	}
	if got.UserCreationCharge != "50.00" {
		t.Fatalf("charge = %q", got.UserCreationCharge)
	}
	if len(got.Children) != 1 || got.Children[0] != child.String() {
		t.Fatalf("children = %v", got.Children)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Fatalf("times must be UTC")
	}
	if got.Devices != nil {
		t.Fatalf("seller must not carry devices")
	}
}

func TestToAPIPrincipal_UserAndAdmin(t *testing.T) {
	t.Parallel()

	u := &model.User{Identity: model.Identity{ID: uuid.Must(uuid.NewV4()), Username: "u1"}, Devices: []string{"d1"}}
	got := ToAPIPrincipal(u)
	if got.Wallet != nil || got.UserCreationCharge != "" || got.CreatedBy != "" {
		t.Fatalf("user carries foreign fields: %+v", got)
	}
	if len(got.Devices) != 1 || got.Devices[0] != "d1" {
		t.Fatalf("devices = %v", got.Devices)
	}

	a := &model.Admin{Identity: model.Identity{ID: uuid.Must(uuid.NewV4()), Username: "root"}}
	if got := ToAPIPrincipal(a); got.Wallet == nil || got.Wallet.Balance != "0.00" {
		t.Fatalf("admin wallet = %+v", got.Wallet)
	}

	if ToAPIPrincipal(nil) != nil {
		t.Fatalf("nil principal must give nil")
	}
	if out := ToAPIPrincipals(nil); out == nil || len(out) != 0 {
		t.Fatalf("empty listing must be non-nil")
	}
}

func TestFromAPICreate(t *testing.T) {
	t.Parallel()

	got, err := FromAPICreate(&portalv1.CreateSubordinateRequest{
		Role: "seller", Username: "shop1", Password: "secret1", InitialBalance: "100.50", UserCreationCharge: "5",
	})
	if err != nil {
		t.Fatalf("FromAPICreate: %v", err)
	}
	if got.Role != model.RoleSeller || !got.InitialBalance.Equal(decimal.RequireFromString("100.5")) ||
		!got.UserCreationCharge.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("mismatch: %+v", got)
	}

	got, err = FromAPICreate(&portalv1.CreateSubordinateRequest{Username: "u1", Password: "secret1", PlanDays: 7})
	if err != nil || got.Role != "" || got.PlanDays != 7 || !got.InitialBalance.IsZero() {
		t.Fatalf("defaults: %+v err=%v", got, err)
	}

	bad := []*portalv1.CreateSubordinateRequest{
		nil,
		{Role: "owner"},
		{InitialBalance: "1.001"},
		{UserCreationCharge: "abc"},
	}
	for i, in := range bad {
		if _, err := FromAPICreate(in); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("case %d: want validation, got %v", i, err)
		}
	}
}

func TestFromAPIListQuery(t *testing.T) {
	t.Parallel()

	owner := uuid.Must(uuid.NewV4())
	q, err := FromAPIListQuery(&portalv1.ListSubordinatesRequest{Role: "user", CreatedBy: owner.String()})
	if err != nil || q.Role != model.RoleUser || q.CreatedBy == nil || *q.CreatedBy != owner {
		t.Fatalf("q=%+v err=%v", q, err)
	}
	if q, err := FromAPIListQuery(nil); err != nil || q.Role != "" || q.CreatedBy != nil {
		t.Fatalf("nil request: %+v %v", q, err)
	}
	if _, err := FromAPIListQuery(&portalv1.ListSubordinatesRequest{CreatedBy: "x"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation, got %v", err)
	}
}
