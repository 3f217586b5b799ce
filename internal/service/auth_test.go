package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/limiter"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/repository/memory"
)

func mustID() uuid.UUID { return uuid.Must(uuid.NewV4()) }

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

func newAuth(t *testing.T, lim limiter.Limiter) (*AuthServiceImpl, *memory.Store) {
	t.Helper()
	st := memory.New()
	cfg := AuthConfig{SignKey: []byte("k"), AccessTTL: time.Minute, SetupSecret: "open-sesame"}
	return NewAuthService(st, cheapHasher, cfg, lim, nil, nil), st
}

func TestAuth_Bootstrap_OnceWithSecret(t *testing.T) {
	t.Parallel()
	s, _ := newAuth(t, &fakeLimiter{allowOK: true})
	ctx := context.Background()

	need, err := s.SetupNeeded(ctx)
	if err != nil || !need {
		t.Fatalf("SetupNeeded before bootstrap: need=%v err=%v", need, err)
	}

	if _, err := s.BootstrapAdmin(ctx, "root", "password", "wrong"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden on secret mismatch, got %v", err)
	}
	if _, err := s.BootstrapAdmin(ctx, "r", "password", "open-sesame"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation on short username, got %v", err)
	}

	p, err := s.BootstrapAdmin(ctx, "root", "password", "open-sesame")
	if err != nil {
		t.Fatalf("BootstrapAdmin: %v", err)
	}
	if p.Role() != model.RoleAdmin || p.Ident().CreatedBy != nil {
		t.Fatalf("bad admin: %+v", p)
	}

	if _, err := s.BootstrapAdmin(ctx, "root2", "password", "open-sesame"); !errors.Is(err, errs.ErrAdminExists) {
		t.Fatalf("want ErrAdminExists on second bootstrap, got %v", err)
	}
	need, _ = s.SetupNeeded(ctx)
	if need {
		t.Fatalf("SetupNeeded after bootstrap")
	}
}

func TestAuth_Bootstrap_DisabledWithoutSecret(t *testing.T) {
	t.Parallel()
	s := NewAuthService(memory.New(), cheapHasher, AuthConfig{SignKey: []byte("k")}, nil, nil, nil)
	if _, err := s.BootstrapAdmin(context.Background(), "root", "password", ""); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden with no configured secret, got %v", err)
	}
}

func TestAuth_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	lim := &fakeLimiter{allowOK: true}
	s, _ := newAuth(t, lim)
	ctx := context.Background()
	if _, err := s.BootstrapAdmin(ctx, "alice", "correct", "open-sesame"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	lim.allowErr = errors.New("lim-err")
	if _, _, err := s.Login(ctx, "alice", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrInternal) {
		t.Fatalf("want limiter error as internal, got %v", err)
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, _, err := s.Login(ctx, "alice", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	if _, _, err := s.Login(ctx, "nope", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}

	lim.failBlocked = true
	if _, _, err := s.Login(ctx, "alice", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}
	lim.failBlocked = false

	if _, _, err := s.Login(ctx, "alice", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	tok, p, err := s.Login(ctx, "alice", "correct", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("Login success: %v", err)
	}
	if tok.AccessToken == "" || tok.ExpiresAt.Before(time.Now()) {
		t.Fatalf("bad token: %+v", tok)
	}
	if p.Ident().Username != "alice" || p.Role() != model.RoleAdmin {
		t.Fatalf("bad principal returned: %+v", p)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
}

func TestAuth_Authenticate(t *testing.T) {
	t.Parallel()
	s, st := newAuth(t, nil)
	ctx := context.Background()
	if _, err := s.BootstrapAdmin(ctx, "alice", "correct", "open-sesame"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	tok, _, err := s.Login(ctx, "alice", "correct", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	p, err := s.Authenticate(ctx, tok.AccessToken)
	if err != nil || p.Ident().Username != "alice" {
		t.Fatalf("Authenticate: p=%v err=%v", p, err)
	}

	if _, err := s.Authenticate(ctx, ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("empty token: %v", err)
	}
	if _, err := s.Authenticate(ctx, tok.AccessToken+"x"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("tampered token: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Authenticate(ctx, tok.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expired token: %v", err)
	}
	s.now = time.Now

	// role claim must match the stored principal
	sel := &model.Seller{Identity: model.Identity{ID: mustID(), Username: "shop"}}
	if err := st.Directory().Insert(ctx, sel); err != nil {
		t.Fatalf("insert: %v", err)
	}
	forged := signClaims(t, Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		Subject: sel.ID.String(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	if _, err := s.Authenticate(ctx, forged); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("role mismatch: %v", err)
	}

	gone := signClaims(t, Claims{Role: "user", RegisteredClaims: jwt.RegisteredClaims{
		Subject: mustID().String(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	if _, err := s.Authenticate(ctx, gone); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("unknown subject: %v", err)
	}
}

func signClaims(t *testing.T, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuth_LoginWithMemoryLimiter_LocksOut(t *testing.T) {
	t.Parallel()
	lim := limiter.NewMemory(limiter.Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	s, _ := newAuth(t, lim)
	ctx := context.Background()
	if _, err := s.BootstrapAdmin(ctx, "alice", "correct", "open-sesame"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	_, _, _ = s.Login(ctx, "alice", "bad", "ip")
	if _, _, err := s.Login(ctx, "alice", "bad", "ip"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want lockout on second failure, got %v", err)
	}
	if _, _, err := s.Login(ctx, "alice", "correct", "ip"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want lockout to hold for correct password, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	if err := Authorize(nil, model.RoleAdmin); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("nil principal: %v", err)
	}
	sel := &model.Seller{}
	if err := Authorize(sel, model.RoleAdmin, model.RoleSubadmin); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("seller as admin: %v", err)
	}
	if err := Authorize(sel, model.RoleSeller); err != nil {
		t.Fatalf("seller as seller: %v", err)
	}
}

func TestCanActOn_OwnershipScopes(t *testing.T) {
	t.Parallel()
	admin := &model.Admin{Identity: model.Identity{ID: mustID()}}
	sa := &model.Subadmin{Identity: model.Identity{ID: mustID()}}
	own := &model.Seller{Identity: model.Identity{ID: mustID(), CreatedBy: &sa.ID}}
	other := &model.Seller{Identity: model.Identity{ID: mustID()}}
	u := &model.User{Identity: model.Identity{ID: mustID(), CreatedBy: &own.ID}}

	cases := []struct {
		name          string
		actor, target model.Principal
		ok            bool
	}{
		{"admin any", admin, other, true},
		{"subadmin own seller", sa, own, true},
		{"subadmin foreign seller", sa, other, false},
		{"subadmin user", sa, u, false},
		{"seller own user", own, u, true},
		{"seller foreign user", other, u, false},
		{"user anything", u, u, false},
	}
	for _, tc := range cases {
		err := CanActOn(tc.actor, tc.target)
		if tc.ok && err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, errs.ErrForbidden) {
			t.Fatalf("%s: want ErrForbidden, got %v", tc.name, err)
		}
	}
}

func TestCanActOn_ForbiddenHidesTargetName(t *testing.T) {
	sa := &model.Subadmin{Identity: model.Identity{ID: mustID(), Username: "sub1"}}
	foreign := &model.Seller{Identity: model.Identity{ID: mustID(), Username: "rival-shop"}}

	err := CanActOn(sa, foreign)
	if !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if strings.Contains(err.Error(), "rival-shop") {
		t.Fatalf("error leaks target username: %q", err.Error())
	}
}
