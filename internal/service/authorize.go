package service

import (
	"fmt"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/model"
)

// Authorize succeeds when p holds one of roles. A nil principal is unauthorized.
func Authorize(p model.Principal, roles ...model.Role) error {
	if p == nil {
		return errs.ErrUnauthorized
	}
	for _, r := range roles {
		if p.Role() == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s may not perform this action", errs.ErrForbidden, p.Role())
}

// CanActOn applies ownership scoping: admin acts on anyone, subadmin on the
// sellers it created, seller on the users it created.
func CanActOn(actor, target model.Principal) error {
	if actor == nil {
		return errs.ErrUnauthorized
	}
	switch actor.Role() {
	case model.RoleAdmin:
		return nil
	case model.RoleSubadmin, model.RoleSeller:
		child, _ := actor.Role().ChildRole()
		if target.Role() == child && model.IsOwnedBy(target, actor.Ident().ID) {
			return nil
		}
	}
	return fmt.Errorf("%w: target is outside the caller's scope", errs.ErrForbidden)
}
