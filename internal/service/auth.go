// Package service contains the portal's application services: authentication,
// the authorization gate, provisioning and the role-dispatching facade.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/reseller-portal/internal/crypto"
	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/limiter"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/obs"
	"github.com/and161185/reseller-portal/internal/repository"
)

// AuthService defines authentication and bootstrap operations.
type AuthService interface {
	// Login applies rate limiting by (username, ip) and issues an access token.
	Login(ctx context.Context, username, password, ip string) (model.Tokens, model.Principal, error)
	// Authenticate verifies a token and re-reads its principal from the directory.
	Authenticate(ctx context.Context, token string) (model.Principal, error)
	// BootstrapAdmin creates the single admin when the setup secret matches.
	BootstrapAdmin(ctx context.Context, username, password, setupSecret string) (model.Principal, error)
	// SetupNeeded reports whether no admin exists yet.
	SetupNeeded(ctx context.Context) (bool, error)
}

// Claims are the access token claims; Subject is the principal id.
type Claims struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthConfig carries the secrets and lifetimes for AuthServiceImpl.
type AuthConfig struct {
	SignKey     []byte
	AccessTTL   time.Duration
	SetupSecret string // empty disables bootstrap
}

// AuthServiceImpl implements AuthService over a Store, a password Hasher and a
// login Limiter.
type AuthServiceImpl struct {
	store   repository.Store
	hasher  pkgcrypto.Hasher
	cfg     AuthConfig
	lim     limiter.Limiter
	log     *zap.Logger
	metrics *obs.Metrics
	now     func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	store repository.Store, hasher pkgcrypto.Hasher, cfg AuthConfig, lim limiter.Limiter, log *zap.Logger, metrics *obs.Metrics,
) *AuthServiceImpl {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 7 * 24 * time.Hour
	}
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{store: store, hasher: hasher, cfg: cfg, lim: lim, log: log, metrics: metrics, now: time.Now}
}

// Login authenticates with rate limiting by (username, ip). Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, ip string) (model.Tokens, model.Principal, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, nil, errs.Internal(err)
	}
	if !allowed {
		s.metrics.Login("rate_limited")
		return model.Tokens{}, nil, errs.ErrRateLimited
	}

	p, err := s.store.Directory().FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, err
	}
	if err != nil || !s.hasher.Verify(password, p.Ident().PwdSalt, p.Ident().PwdHash) {
		s.metrics.Login("bad_credentials")
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			s.log.Warn("login locked out", zap.String("username", username))
			return model.Tokens{}, nil, errs.ErrRateLimited
		}
		return model.Tokens{}, nil, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, username, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}

	tok, err := s.issueAccessToken(p)
	if err != nil {
		return model.Tokens{}, nil, errs.Internal(err)
	}
	s.metrics.Login("ok")
	return tok, p, nil
}

// issueAccessToken creates a signed HS256 JWT for p.
func (s *AuthServiceImpl) issueAccessToken(p model.Principal) (model.Tokens, error) {
	now := s.now()
	exp := now.Add(s.cfg.AccessTTL)
	claims := Claims{
		Role:     p.Role().String(),
		Username: p.Ident().Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Ident().ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SignKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// Authenticate verifies signature and expiry, then resolves the subject. A principal
// deleted since issuance, or whose role differs from the claim, is unauthorized.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return nil, errs.ErrUnauthorized
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.cfg.SignKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithLeeway(30*time.Second), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, errs.ErrUnauthorized
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	p, err := s.store.Directory().FindByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if p.Role().String() != claims.Role {
		return nil, errs.ErrUnauthorized
	}
	return p, nil
}

// BootstrapAdmin creates the admin once. The single-admin index backs the
// count check against concurrent bootstraps.
func (s *AuthServiceImpl) BootstrapAdmin(ctx context.Context, username, password, setupSecret string) (model.Principal, error) {
	if s.cfg.SetupSecret == "" ||
		subtle.ConstantTimeCompare([]byte(setupSecret), []byte(s.cfg.SetupSecret)) != 1 {
		return nil, fmt.Errorf("%w: setup secret mismatch", errs.ErrForbidden)
	}
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errs.Internal(err)
	}

	now := s.now()
	admin := &model.Admin{Identity: model.Identity{
		ID:         uuid.Must(uuid.NewV4()),
		Username:   username,
		PwdHash:    hash,
		PwdSalt:    salt,
		PlanExpiry: model.NonExpiringPlan(now),
	}}
	err = s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		n, err := r.Directory().CountByRole(ctx, model.RoleAdmin)
		if err != nil {
			return err
		}
		if n > 0 {
			return errs.ErrAdminExists
		}
		return r.Directory().Insert(ctx, admin)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("admin bootstrapped", zap.String("username", username), zap.Stringer("principal_id", admin.ID))
	return admin, nil
}

// SetupNeeded reports whether BootstrapAdmin is still open.
func (s *AuthServiceImpl) SetupNeeded(ctx context.Context) (bool, error) {
	n, err := s.store.Directory().CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
