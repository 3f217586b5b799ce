package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/reseller-portal/internal/crypto"
	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/ledger"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/obs"
	"github.com/and161185/reseller-portal/internal/repository"
)

// Wallet descriptions written by the engine.
const (
	DescInitialBalance = "Initial balance"
	DescDeposit        = "Deposit"
	DescWithdrawal     = "Withdrawal"
	DescFromSubadmin   = "Deposit from subadmin"
)

// SubadminRequest creates a subadmin.
type SubadminRequest struct {
	Username       string
	Password       string
	InitialBalance decimal.Decimal
}

// SellerRequest creates a seller.
type SellerRequest struct {
	Username           string
	Password           string
	UserCreationCharge decimal.Decimal
	InitialBalance     decimal.Decimal
}

// UserRequest creates an end user; PlanDays 0 means the default plan length.
type UserRequest struct {
	Username string
	Password string
	PlanDays int
}

// Provisioner creates subordinate principals and moves money between wallets.
// Every operation is one Store.WithinTx unit: the directory insert and the
// paired ledger entries commit together or not at all.
type Provisioner struct {
	store   repository.Store
	hasher  pkgcrypto.Hasher
	log     *zap.Logger
	metrics *obs.Metrics
	now     func() time.Time
}

// NewProvisioner constructs a Provisioner. log and metrics may be nil.
func NewProvisioner(store repository.Store, hasher pkgcrypto.Hasher, log *zap.Logger, metrics *obs.Metrics) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{store: store, hasher: hasher, log: log, metrics: metrics, now: time.Now}
}

func (p *Provisioner) ledger(r repository.Repos) *ledger.Ledger { return ledger.New(r.Ledger(), p.metrics) }

// identity validates credentials and hashes the password outside any transaction.
func (p *Provisioner) identity(username, password string, createdBy *uuid.UUID, planExpiry time.Time) (model.Identity, error) {
	if err := validateCredentials(username, password); err != nil {
		return model.Identity{}, err
	}
	hash, salt, err := p.hasher.Hash(password)
	if err != nil {
		return model.Identity{}, errs.Internal(err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Identity{}, errs.Internal(err)
	}
	return model.Identity{
		ID: id, Username: username, PwdHash: hash, PwdSalt: salt,
		CreatedBy: createdBy, PlanExpiry: planExpiry,
	}, nil
}

// CreateSubadmin is the admin path; no wallet is debited.
func (p *Provisioner) CreateSubadmin(ctx context.Context, req SubadminRequest) (*model.Subadmin, error) {
	if err := validateNonNegative("initial_balance", req.InitialBalance); err != nil {
		return nil, p.failed(model.RoleSubadmin, err)
	}
	ident, err := p.identity(req.Username, req.Password, nil, model.NonExpiringPlan(p.now()))
	if err != nil {
		return nil, p.failed(model.RoleSubadmin, err)
	}
	sa := &model.Subadmin{Identity: ident}
	err = p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := r.Directory().Insert(ctx, sa); err != nil {
			return err
		}
		return p.seed(ctx, r, &sa.Wallet, sa.ID, req.InitialBalance)
	})
	if err != nil {
		return nil, p.failed(model.RoleSubadmin, err)
	}
	p.created(sa, nil)
	return sa, nil
}

// CreateSeller is the admin path: unconditioned by funds, createdBy absent.
func (p *Provisioner) CreateSeller(ctx context.Context, req SellerRequest) (*model.Seller, error) {
	s, err := p.newSeller(req, nil)
	if err != nil {
		return nil, p.failed(model.RoleSeller, err)
	}
	err = p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := r.Directory().Insert(ctx, s); err != nil {
			return err
		}
		return p.seed(ctx, r, &s.Wallet, s.ID, req.InitialBalance)
	})
	if err != nil {
		return nil, p.failed(model.RoleSeller, err)
	}
	p.created(s, nil)
	return s, nil
}

// CreateSellerBySubadmin funds the new seller's initial balance from the subadmin's wallet.
func (p *Provisioner) CreateSellerBySubadmin(ctx context.Context, subadminID uuid.UUID, req SellerRequest) (*model.Seller, error) {
	s, err := p.newSeller(req, &subadminID)
	if err != nil {
		return nil, p.failed(model.RoleSeller, err)
	}
	err = p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		creator, err := r.Directory().LockByID(ctx, subadminID)
		if err != nil {
			return err
		}
		if err := Authorize(creator, model.RoleSubadmin); err != nil {
			return err
		}
		l := p.ledger(r)
		if _, err := l.EnsureFunds(ctx, subadminID, req.InitialBalance); err != nil {
			return err
		}
		if err := r.Directory().Insert(ctx, s); err != nil {
			return err
		}
		if _, err := l.Record(ctx, subadminID, req.InitialBalance.Neg(), "Seller creation: "+s.Username); err != nil {
			return err
		}
		return p.seed(ctx, r, &s.Wallet, s.ID, req.InitialBalance)
	})
	if err != nil {
		return nil, p.failed(model.RoleSeller, err)
	}
	p.created(s, &subadminID)
	return s, nil
}

func (p *Provisioner) newSeller(req SellerRequest, createdBy *uuid.UUID) (*model.Seller, error) {
	if err := validateNonNegative("user_creation_charge", req.UserCreationCharge); err != nil {
		return nil, err
	}
	if err := validateNonNegative("initial_balance", req.InitialBalance); err != nil {
		return nil, err
	}
	ident, err := p.identity(req.Username, req.Password, createdBy, model.NonExpiringPlan(p.now()))
	if err != nil {
		return nil, err
	}
	return &model.Seller{Identity: ident, UserCreationCharge: req.UserCreationCharge}, nil
}

// CreateUserBySeller debits the seller's user creation charge. A zero charge still
// records a zero entry.
func (p *Provisioner) CreateUserBySeller(ctx context.Context, sellerID uuid.UUID, req UserRequest) (*model.User, error) {
	days := req.PlanDays
	if days == 0 {
		days = defaultPlanDays
	}
	if days < 1 || days > maxPlanDays {
		return nil, p.failed(model.RoleUser, errs.Invalid("plan_days", "must be 1 to 36500"))
	}
	ident, err := p.identity(req.Username, req.Password, &sellerID, p.now().AddDate(0, 0, days))
	if err != nil {
		return nil, p.failed(model.RoleUser, err)
	}
	u := &model.User{Identity: ident, Devices: []string{}}
	err = p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		creator, err := r.Directory().LockByID(ctx, sellerID)
		if err != nil {
			return err
		}
		seller, ok := creator.(*model.Seller)
		if !ok {
			return Authorize(creator, model.RoleSeller)
		}
		l := p.ledger(r)
		if _, err := l.EnsureFunds(ctx, sellerID, seller.UserCreationCharge); err != nil {
			return err
		}
		if err := r.Directory().Insert(ctx, u); err != nil {
			return err
		}
		_, err = l.Record(ctx, sellerID, seller.UserCreationCharge.Neg(), "User creation: "+u.Username)
		return err
	})
	if err != nil {
		return nil, p.failed(model.RoleUser, err)
	}
	p.created(u, &sellerID)
	return u, nil
}

// seed credits the "Initial balance" entry when amount is positive.
func (p *Provisioner) seed(ctx context.Context, r repository.Repos, w *model.Wallet, id uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	t, err := p.ledger(r).Credit(ctx, id, amount, DescInitialBalance)
	if err != nil {
		return err
	}
	w.Balance = t.BalanceAfter
	w.Transactions = append(w.Transactions, t)
	return nil
}

// DeleteUserBySeller removes a user the seller created. No refund is issued.
func (p *Provisioner) DeleteUserBySeller(ctx context.Context, sellerID, userID uuid.UUID) error {
	return p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		u, err := userForUpdate(ctx, r, userID)
		if err != nil {
			return err
		}
		if !model.IsOwnedBy(u, sellerID) {
			return fmt.Errorf("%w: user %s is not owned by seller %s", errs.ErrForbidden, userID, sellerID)
		}
		return p.removeUser(ctx, r, u)
	})
}

// RemoveUser deletes any user; callers restrict it to admins.
func (p *Provisioner) RemoveUser(ctx context.Context, userID uuid.UUID) error {
	return p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		u, err := userForUpdate(ctx, r, userID)
		if err != nil {
			return err
		}
		return p.removeUser(ctx, r, u)
	})
}

func (p *Provisioner) removeUser(ctx context.Context, r repository.Repos, u *model.User) error {
	if err := r.Directory().Remove(ctx, u.ID); err != nil {
		return err
	}
	p.log.Info("user deleted", zap.Stringer("principal_id", u.ID), zap.String("username", u.Username))
	return nil
}

// ResetUserDevices clears the device list. Repeating it is a no-op.
func (p *Provisioner) ResetUserDevices(ctx context.Context, userID uuid.UUID) error {
	return p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if _, err := userForUpdate(ctx, r, userID); err != nil {
			return err
		}
		return r.Directory().SetDevices(ctx, userID, []string{})
	})
}

// RemoveDevice drops one device id from a user; an absent id is a no-op.
func (p *Provisioner) RemoveDevice(ctx context.Context, userID uuid.UUID, deviceID string) error {
	if deviceID == "" {
		return errs.Invalid("device_id", "required")
	}
	return p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		u, err := userForUpdate(ctx, r, userID)
		if err != nil {
			return err
		}
		kept := make([]string, 0, len(u.Devices))
		for _, d := range u.Devices {
			if d != deviceID {
				kept = append(kept, d)
			}
		}
		if len(kept) == len(u.Devices) {
			return nil
		}
		return r.Directory().SetDevices(ctx, userID, kept)
	})
}

func userForUpdate(ctx context.Context, r repository.Repos, id uuid.UUID) (*model.User, error) {
	p, err := r.Directory().LockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u, ok := p.(*model.User)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a user", errs.ErrNotFound, id)
	}
	return u, nil
}

// AdjustWallet moves a target's balance by a signed amount and returns the new balance.
//
// Admin: any wallet-bearing target, unchecked. Subadmin: only its own sellers; a
// positive amount is a checked transfer out of the subadmin's wallet, a negative
// one debits the seller alone.
func (p *Provisioner) AdjustWallet(
	ctx context.Context, actor model.Principal, targetID uuid.UUID, amount decimal.Decimal, description string,
) (decimal.Decimal, error) {
	if err := Authorize(actor, model.RoleAdmin, model.RoleSubadmin); err != nil {
		return decimal.Zero, err
	}
	if err := ledger.ValidateAmount("amount", amount); err != nil {
		return decimal.Zero, err
	}
	if amount.IsZero() {
		return decimal.Zero, errs.Invalid("amount", "must not be zero")
	}

	var balance decimal.Decimal
	err := p.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		target, err := r.Directory().FindByID(ctx, targetID)
		if err != nil {
			return err
		}
		if _, ok := model.WalletOf(target); !ok {
			return errs.Invalid("target", "principal has no wallet")
		}
		if err := CanActOn(actor, target); err != nil {
			return err
		}
		l := p.ledger(r)

		if actor.Role() == model.RoleSubadmin && amount.IsPositive() {
			fromDesc := "Transfer to seller: " + target.Ident().Username
			if description != "" {
				fromDesc += " - " + description
			}
			_, credit, err := l.Transfer(ctx, actor.Ident().ID, targetID, amount, fromDesc, orDefault(description, DescFromSubadmin))
			if err != nil {
				return err
			}
			balance = credit.BalanceAfter
			return nil
		}

		def := DescDeposit
		if amount.IsNegative() {
			def = DescWithdrawal
		}
		t, err := l.Record(ctx, targetID, amount, orDefault(description, def))
		if err != nil {
			return err
		}
		balance = t.BalanceAfter
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	p.log.Info("wallet adjusted",
		zap.Stringer("actor_id", actor.Ident().ID),
		zap.Stringer("target_id", targetID),
		zap.String("amount", amount.StringFixed(ledger.MinorUnits)),
	)
	return balance, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (p *Provisioner) created(pr model.Principal, by *uuid.UUID) {
	p.metrics.Provisioned(pr.Role().String())
	fields := []zap.Field{
		zap.String("role", pr.Role().String()),
		zap.Stringer("principal_id", pr.Ident().ID),
		zap.String("username", pr.Ident().Username),
	}
	if by != nil {
		fields = append(fields, zap.Stringer("created_by", *by))
	}
	p.log.Info("principal provisioned", fields...)
}

func (p *Provisioner) failed(role model.Role, err error) error {
	p.metrics.ProvisionFailed(role.String(), reason(err))
	if errors.Is(err, errs.ErrInternal) {
		p.log.Error("provisioning failed", zap.String("role", role.String()), zap.Error(err))
	}
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return "validation"
	case errors.Is(err, errs.ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, errs.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, errs.ErrForbidden):
		return "forbidden"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	}
	return "internal"
}
