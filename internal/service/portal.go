package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/ledger"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/repository"
)

// ListQuery narrows ListSubordinates. Zero values pick the actor's default roster.
type ListQuery struct {
	Role      model.Role
	CreatedBy *uuid.UUID
}

// CreateRequest is the role-agnostic creation payload; fields the target role does
// not use are ignored.
type CreateRequest struct {
	Role               model.Role
	Username           string
	Password           string
	InitialBalance     decimal.Decimal
	UserCreationCharge decimal.Decimal
	PlanDays           int
}

// Portal is the actor-scoped surface exposed to the transport. Each method
// takes the authenticated principal and enforces role and ownership rules.
type Portal struct {
	store repository.Store
	prov  *Provisioner
}

// NewPortal constructs a Portal.
func NewPortal(store repository.Store, prov *Provisioner) *Portal {
	return &Portal{store: store, prov: prov}
}

// DashboardStats counts each tier. Admin only.
func (s *Portal) DashboardStats(ctx context.Context, actor model.Principal) (model.DashboardStats, error) {
	if err := Authorize(actor, model.RoleAdmin); err != nil {
		return model.DashboardStats{}, err
	}
	dir := s.store.Directory()
	var st model.DashboardStats
	var err error
	if st.TotalUsers, err = dir.CountByRole(ctx, model.RoleUser); err != nil {
		return model.DashboardStats{}, err
	}
	if st.TotalSellers, err = dir.CountByRole(ctx, model.RoleSeller); err != nil {
		return model.DashboardStats{}, err
	}
	if st.TotalSubadmins, err = dir.CountByRole(ctx, model.RoleSubadmin); err != nil {
		return model.DashboardStats{}, err
	}
	return st, nil
}

// ListSubordinates lists principals visible to actor. Admin may list any tier
// (default subadmins); subadmins and sellers see only what they created.
func (s *Portal) ListSubordinates(ctx context.Context, actor model.Principal, q ListQuery) ([]model.Principal, error) {
	if err := Authorize(actor, model.RoleAdmin, model.RoleSubadmin, model.RoleSeller); err != nil {
		return nil, err
	}
	f := repository.ListFilter{CreatedBy: q.CreatedBy}
	role := q.Role
	if actor.Role() == model.RoleAdmin {
		if role == "" {
			role = model.RoleSubadmin
		}
		if !role.Valid() {
			return nil, errs.Invalid("role", fmt.Sprintf("unknown role %q", role))
		}
	} else {
		child, _ := actor.Role().ChildRole()
		if role != "" && role != child {
			return nil, fmt.Errorf("%w: %s may only list %s", errs.ErrForbidden, actor.Role(), child)
		}
		if q.CreatedBy != nil && *q.CreatedBy != actor.Ident().ID {
			return nil, fmt.Errorf("%w: cannot list another principal's children", errs.ErrForbidden)
		}
		role = child
		id := actor.Ident().ID
		f.CreatedBy = &id
	}
	return s.store.Directory().ListByRole(ctx, role, f)
}

// CreateSubordinate dispatches on the actor's role: admin creates subadmins and
// sellers, a subadmin creates funded sellers, a seller creates users.
func (s *Portal) CreateSubordinate(ctx context.Context, actor model.Principal, req CreateRequest) (model.Principal, error) {
	if err := Authorize(actor, model.RoleAdmin, model.RoleSubadmin, model.RoleSeller); err != nil {
		return nil, err
	}
	seller := SellerRequest{
		Username: req.Username, Password: req.Password,
		UserCreationCharge: req.UserCreationCharge, InitialBalance: req.InitialBalance,
	}
	switch actor.Role() {
	case model.RoleAdmin:
		switch req.Role {
		case model.RoleSubadmin:
			return nilOr(s.prov.CreateSubadmin(ctx, SubadminRequest{
				Username: req.Username, Password: req.Password, InitialBalance: req.InitialBalance,
			}))
		case model.RoleSeller:
			return nilOr(s.prov.CreateSeller(ctx, seller))
		case "":
			return nil, errs.Invalid("role", "required")
		}
	case model.RoleSubadmin:
		if req.Role == "" || req.Role == model.RoleSeller {
			return nilOr(s.prov.CreateSellerBySubadmin(ctx, actor.Ident().ID, seller))
		}
	case model.RoleSeller:
		if req.Role == "" || req.Role == model.RoleUser {
			return nilOr(s.prov.CreateUserBySeller(ctx, actor.Ident().ID, UserRequest{
				Username: req.Username, Password: req.Password, PlanDays: req.PlanDays,
			}))
		}
	}
	return nil, fmt.Errorf("%w: %s may not create %s", errs.ErrForbidden, actor.Role(), req.Role)
}

// nilOr keeps a typed nil pointer from becoming a non-nil Principal.
func nilOr[T model.Principal](p T, err error) (model.Principal, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AdjustWallet applies a signed adjustment to targetID and returns its new balance.
func (s *Portal) AdjustWallet(
	ctx context.Context, actor model.Principal, targetID uuid.UUID, amount decimal.Decimal, description string,
) (decimal.Decimal, error) {
	return s.prov.AdjustWallet(ctx, actor, targetID, amount, description)
}

// DeleteUser removes a user: sellers their own, admin any.
func (s *Portal) DeleteUser(ctx context.Context, actor model.Principal, userID uuid.UUID) error {
	if err := Authorize(actor, model.RoleAdmin, model.RoleSeller); err != nil {
		return err
	}
	if actor.Role() == model.RoleSeller {
		return s.prov.DeleteUserBySeller(ctx, actor.Ident().ID, userID)
	}
	return s.prov.RemoveUser(ctx, userID)
}

// ResetDevices clears a user's devices: admin any user, seller its own.
func (s *Portal) ResetDevices(ctx context.Context, actor model.Principal, userID uuid.UUID) error {
	if err := s.userInScope(ctx, actor, userID); err != nil {
		return err
	}
	return s.prov.ResetUserDevices(ctx, userID)
}

// RemoveDevice drops one device from a user: admin any user, seller its own.
func (s *Portal) RemoveDevice(ctx context.Context, actor model.Principal, userID uuid.UUID, deviceID string) error {
	if err := s.userInScope(ctx, actor, userID); err != nil {
		return err
	}
	return s.prov.RemoveDevice(ctx, userID, deviceID)
}

func (s *Portal) userInScope(ctx context.Context, actor model.Principal, userID uuid.UUID) error {
	if err := Authorize(actor, model.RoleAdmin, model.RoleSeller); err != nil {
		return err
	}
	target, err := s.store.Directory().FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role() != model.RoleUser {
		return fmt.Errorf("%w: %s is not a user", errs.ErrNotFound, userID)
	}
	return CanActOn(actor, target)
}

// Profile returns the actor as currently stored, with wallet history loaded.
func (s *Portal) Profile(ctx context.Context, actor model.Principal) (model.Principal, error) {
	if actor == nil {
		return nil, errs.ErrUnauthorized
	}
	return s.load(ctx, actor.Ident().ID)
}

// Principal returns one principal in the actor's scope, with wallet history loaded.
func (s *Portal) Principal(ctx context.Context, actor model.Principal, id uuid.UUID) (model.Principal, error) {
	if actor == nil {
		return nil, errs.ErrUnauthorized
	}
	if id == actor.Ident().ID {
		return s.load(ctx, id)
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanActOn(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Portal) load(ctx context.Context, id uuid.UUID) (model.Principal, error) {
	p, err := s.store.Directory().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w, ok := model.WalletOf(p); ok {
		if w.Transactions, err = s.store.Ledger().History(ctx, id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Reconcile checks a wallet's cached balance against its log. Admin only.
func (s *Portal) Reconcile(ctx context.Context, actor model.Principal, targetID uuid.UUID) (decimal.Decimal, error) {
	if err := Authorize(actor, model.RoleAdmin); err != nil {
		return decimal.Zero, err
	}
	return ledger.New(s.store.Ledger(), nil).Reconcile(ctx, targetID)
}
