// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// Tokens collects the issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Role is the hierarchy tier of a principal.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSubadmin Role = "subadmin"
	RoleSeller   Role = "seller"
	RoleUser     Role = "user"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the four tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSubadmin, RoleSeller, RoleUser:
		return true
	}
	return false
}

// HasWallet reports whether principals of this role transact.
func (r Role) HasWallet() bool { return r == RoleAdmin || r == RoleSubadmin || r == RoleSeller }

// ChildRole is the role a principal of r provisions and tracks, if any.
func (r Role) ChildRole() (Role, bool) {
	switch r {
	case RoleSubadmin:
		return RoleSeller, true
	case RoleSeller:
		return RoleUser, true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// NonExpiringPlan is the plan expiry sentinel for tiers that are not subscription-bound.
func NonExpiringPlan(now time.Time) time.Time { return now.AddDate(10, 0, 0) }

// Transaction is one immutable wallet entry. Amount > 0 is a credit, < 0 a debit.
type Transaction struct {
	ID           string // ULID, sortable by creation
	PrincipalID  uuid.UUID
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Description  string
	CreatedAt    time.Time
}

// Wallet is a cached balance plus its transaction log.
// Transactions is populated only when history was requested.
type Wallet struct {
	Balance      decimal.Decimal
	Transactions []Transaction
}

// Sum totals the transaction log.
func (w Wallet) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, t := range w.Transactions {
		total = total.Add(t.Amount)
	}
	return total
}

// Identity holds the fields every principal shares.
type Identity struct {
	ID         uuid.UUID  // PK
	Username   string     // unique across all roles
	PwdHash    []byte     // Argon2id(password, PwdSalt)
	PwdSalt    []byte     // per-principal salt
	CreatedBy  *uuid.UUID // nil for admin-created and bootstrap principals
	PlanExpiry time.Time
	CreatedAt  time.Time
}

// Principal is a directory-resident account. It is implemented by
// *Admin, *Subadmin, *Seller and *User only.
type Principal interface {
	Ident() *Identity
	Role() Role
	sealed()
}

// Funded is implemented by principals that own a wallet.
type Funded interface {
	Principal
	Funds() *Wallet
}

// Admin is the single top-level operator.
type Admin struct {
	Identity
	Wallet Wallet
}

// Subadmin funds and provisions sellers.
type Subadmin struct {
	Identity
	Wallet          Wallet
	CreatedChildren []uuid.UUID // sellers
}

// Seller funds and provisions users.
type Seller struct {
	Identity
	Wallet             Wallet
	UserCreationCharge decimal.Decimal
	CreatedChildren    []uuid.UUID // users
}

// User is an end subscriber; it never transacts.
type User struct {
	Identity
	Devices []string
}

func (p *Admin) Ident() *Identity    { return &p.Identity }
func (p *Subadmin) Ident() *Identity { return &p.Identity }
func (p *Seller) Ident() *Identity   { return &p.Identity }
func (p *User) Ident() *Identity     { return &p.Identity }

func (*Admin) Role() Role    { return RoleAdmin }
func (*Subadmin) Role() Role { return RoleSubadmin }
func (*Seller) Role() Role   { return RoleSeller }
func (*User) Role() Role     { return RoleUser }

func (*Admin) sealed()    {}
func (*Subadmin) sealed() {}
func (*Seller) sealed()   {}
func (*User) sealed()     {}

func (p *Admin) Funds() *Wallet    { return &p.Wallet }
func (p *Subadmin) Funds() *Wallet { return &p.Wallet }
func (p *Seller) Funds() *Wallet   { return &p.Wallet }

// WalletOf returns the principal's wallet, if its role has one.
func WalletOf(p Principal) (*Wallet, bool) {
	f, ok := p.(Funded)
	if !ok {
		return nil, false
	}
	return f.Funds(), true
}

// ChildrenOf returns the ids the principal directly created.
func ChildrenOf(p Principal) []uuid.UUID {
	switch v := p.(type) {
	case *Subadmin:
		return v.CreatedChildren
	case *Seller:
		return v.CreatedChildren
	}
	return nil
}

// IsOwnedBy reports whether p was created by ownerID.
func IsOwnedBy(p Principal, ownerID uuid.UUID) bool {
	cb := p.Ident().CreatedBy
	return cb != nil && *cb == ownerID
}

// Attributes is the flat form principals are persisted in.
type Attributes struct {
	Identity
	Role               Role
	Balance            decimal.Decimal
	UserCreationCharge decimal.Decimal
	Devices            []string
	Children           []uuid.UUID
}

// Principal rebuilds the role-specific variant, dropping fields the role does not carry.
func (a Attributes) Principal() (Principal, error) {
	switch a.Role {
	case RoleAdmin:
		return &Admin{Identity: a.Identity, Wallet: Wallet{Balance: a.Balance}}, nil
	case RoleSubadmin:
		return &Subadmin{Identity: a.Identity, Wallet: Wallet{Balance: a.Balance}, CreatedChildren: a.Children}, nil
	case RoleSeller:
		return &Seller{
			Identity:           a.Identity,
			Wallet:             Wallet{Balance: a.Balance},
			UserCreationCharge: a.UserCreationCharge,
			CreatedChildren:    a.Children,
		}, nil
	case RoleUser:
		devices := a.Devices
		if devices == nil {
			devices = []string{}
		}
		return &User{Identity: a.Identity, Devices: devices}, nil
	}
	return nil, fmt.Errorf("unknown role %q", a.Role)
}

// Flatten is the inverse of Attributes.Principal.
func Flatten(p Principal) Attributes {
	a := Attributes{Identity: *p.Ident(), Role: p.Role(), Balance: decimal.Zero, UserCreationCharge: decimal.Zero}
	if w, ok := WalletOf(p); ok {
		a.Balance = w.Balance
	}
	switch v := p.(type) {
	case *Seller:
		a.UserCreationCharge = v.UserCreationCharge
		a.Children = v.CreatedChildren
	case *Subadmin:
		a.Children = v.CreatedChildren
	case *User:
		a.Devices = v.Devices
	}
	return a
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalUsers     int
	TotalSellers   int
	TotalSubadmins int
}
