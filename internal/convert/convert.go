// Package convert maps between domain models and portal wire messages.
package convert

import (
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	portalv1 "github.com/and161185/reseller-portal/api/portal/v1"
	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/ledger"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/service"
)

// --- helpers ---

// Amount renders money with exactly two fractional digits.
func Amount(d decimal.Decimal) string { return d.StringFixed(ledger.MinorUnits) }

// ParseID parses a wire UUID, reporting field on failure.
func ParseID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, errs.Invalid(field, "required")
	}
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, errs.Invalid(field, "not a uuid")
	}
	return id, nil
}

func ids(in []uuid.UUID) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = id.String()
	}
	return out
}

// --- domain -> wire ---

// ToAPITransaction converts one ledger entry.
func ToAPITransaction(t model.Transaction) portalv1.Transaction {
	return portalv1.Transaction{
		ID:           t.ID,
		Amount:       Amount(t.Amount),
		BalanceAfter: Amount(t.BalanceAfter),
		Description:  t.Description,
		CreatedAt:    t.CreatedAt.UTC(),
	}
}

// ToAPIPrincipal converts a principal, emitting only the fields its role carries.
// Password material never leaves the process.
func ToAPIPrincipal(p model.Principal) *portalv1.Principal {
	if p == nil {
		return nil
	}
	id := p.Ident()
	out := &portalv1.Principal{
		ID:         id.ID.String(),
		Username:   id.Username,
		Role:       p.Role().String(),
		PlanExpiry: id.PlanExpiry.UTC(),
		CreatedAt:  id.CreatedAt.UTC(),
		Children:   ids(model.ChildrenOf(p)),
	}
	if id.CreatedBy != nil {
		out.CreatedBy = id.CreatedBy.String()
	}
	if w, ok := model.WalletOf(p); ok {
		out.Wallet = &portalv1.Wallet{Balance: Amount(w.Balance)}
		for _, t := range w.Transactions {
			out.Wallet.Transactions = append(out.Wallet.Transactions, ToAPITransaction(t))
		}
	}
	switch v := p.(type) {
	case *model.Seller:
		out.UserCreationCharge = Amount(v.UserCreationCharge)
	case *model.User:
		out.Devices = append([]string{}, v.Devices...)
	}
	return out
}

// ToAPIPrincipals converts a listing; an empty listing stays a non-nil slice.
func ToAPIPrincipals(ps []model.Principal) []*portalv1.Principal {
	out := make([]*portalv1.Principal, 0, len(ps))
	for _, p := range ps {
		out = append(out, ToAPIPrincipal(p))
	}
	return out
}

// ToAPIStats converts the admin dashboard counters.
func ToAPIStats(s model.DashboardStats) *portalv1.DashboardStatsResponse {
	return &portalv1.DashboardStatsResponse{
		TotalUsers:     s.TotalUsers,
		TotalSellers:   s.TotalSellers,
		TotalSubadmins: s.TotalSubadmins,
	}
}

// --- wire -> domain ---

// FromAPICreate converts a creation request. Role may be empty; the portal
// then picks the actor's child role.
func FromAPICreate(in *portalv1.CreateSubordinateRequest) (service.CreateRequest, error) {
	if in == nil {
		return service.CreateRequest{}, errs.Invalid("", "empty request")
	}
	out := service.CreateRequest{Username: in.Username, Password: in.Password, PlanDays: in.PlanDays}
	if in.Role != "" {
		r, err := model.ParseRole(in.Role)
		if err != nil {
			return service.CreateRequest{}, errs.Invalid("role", err.Error())
		}
		out.Role = r
	}
	var err error
	if out.InitialBalance, err = ledger.ParseAmount("initial_balance", in.InitialBalance); err != nil {
		return service.CreateRequest{}, err
	}
	if out.UserCreationCharge, err = ledger.ParseAmount("user_creation_charge", in.UserCreationCharge); err != nil {
		return service.CreateRequest{}, err
	}
	return out, nil
}

// FromAPIListQuery converts a listing filter.
func FromAPIListQuery(in *portalv1.ListSubordinatesRequest) (service.ListQuery, error) {
	var q service.ListQuery
	if in == nil {
		return q, nil
	}
	if in.Role != "" {
		r, err := model.ParseRole(in.Role)
		if err != nil {
			return q, errs.Invalid("role", err.Error())
		}
		q.Role = r
	}
	if in.CreatedBy != "" {
		id, err := ParseID("created_by", in.CreatedBy)
		if err != nil {
			return q, err
		}
		q.CreatedBy = &id
	}
	return q, nil
}
