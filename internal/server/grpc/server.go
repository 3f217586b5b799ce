// Package grpcserver exposes the reseller portal gRPC API handlers.
package grpcserver

import (
	"context"

	portalv1 "github.com/and161185/reseller-portal/api/portal/v1"
	"github.com/and161185/reseller-portal/internal/convert"
	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/ledger"
	"github.com/and161185/reseller-portal/internal/model"
	"github.com/and161185/reseller-portal/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	portalv1.UnimplementedPortalServer
	auth   service.AuthService
	portal *service.Portal
}

var _ portalv1.PortalServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, portal *service.Portal) *Server {
	return &Server{auth: auth, portal: portal}
}

func actor(ctx context.Context) (model.Principal, error) {
	p, ok := PrincipalFromCtx(ctx)
	if !ok {
		return nil, toStatus(errs.ErrUnauthorized)
	}
	return p, nil
}

// --- Auth ---

// Login authenticates a principal and returns an access token.
func (s *Server) Login(ctx context.Context, req *portalv1.LoginRequest) (*portalv1.LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, toStatus(errs.Invalid("", "empty username/password"))
	}
	tok, p, err := s.auth.Login(ctx, req.Username, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt.UTC(),
		Principal:   convert.ToAPIPrincipal(p),
	}, nil
}

// BootstrapAdmin creates the single admin account.
func (s *Server) BootstrapAdmin(ctx context.Context, req *portalv1.BootstrapAdminRequest) (*portalv1.PrincipalResponse, error) {
	p, err := s.auth.BootstrapAdmin(ctx, req.Username, req.Password, req.SetupSecret)
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.PrincipalResponse{Principal: convert.ToAPIPrincipal(p)}, nil
}

// SetupStatus reports whether bootstrap is still open.
func (s *Server) SetupStatus(ctx context.Context, _ *portalv1.Empty) (*portalv1.SetupStatusResponse, error) {
	needed, err := s.auth.SetupNeeded(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.SetupStatusResponse{SetupNeeded: needed}, nil
}

// --- Directory ---

// Profile returns the caller with wallet history.
func (s *Server) Profile(ctx context.Context, _ *portalv1.Empty) (*portalv1.PrincipalResponse, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.portal.Profile(ctx, a)
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.PrincipalResponse{Principal: convert.ToAPIPrincipal(p)}, nil
}

// GetPrincipal returns one principal in the caller's scope.
func (s *Server) GetPrincipal(ctx context.Context, req *portalv1.GetPrincipalRequest) (*portalv1.PrincipalResponse, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("id", req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	p, err := s.portal.Principal(ctx, a, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.PrincipalResponse{Principal: convert.ToAPIPrincipal(p)}, nil
}

// DashboardStats returns the per-tier counts.
func (s *Server) DashboardStats(ctx context.Context, _ *portalv1.Empty) (*portalv1.DashboardStatsResponse, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.portal.DashboardStats(ctx, a)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToAPIStats(st), nil
}

// ListSubordinates lists principals visible to the caller.
func (s *Server) ListSubordinates(ctx context.Context, req *portalv1.ListSubordinatesRequest) (*portalv1.ListSubordinatesResponse, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	q, err := convert.FromAPIListQuery(req)
	if err != nil {
		return nil, toStatus(err)
	}
	ps, err := s.portal.ListSubordinates(ctx, a, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.ListSubordinatesResponse{Principals: convert.ToAPIPrincipals(ps)}, nil
}

// CreateSubordinate provisions a principal one tier below the caller.
func (s *Server) CreateSubordinate(ctx context.Context, req *portalv1.CreateSubordinateRequest) (*portalv1.PrincipalResponse, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	in, err := convert.FromAPICreate(req)
	if err != nil {
		return nil, toStatus(err)
	}
	p, err := s.portal.CreateSubordinate(ctx, a, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.PrincipalResponse{Principal: convert.ToAPIPrincipal(p)}, nil
}

// --- Wallets ---

// AdjustWallet applies a signed adjustment and returns the new balance.
func (s *Server) AdjustWallet(ctx context.Context, req *portalv1.AdjustWalletRequest) (*portalv1.BalanceResponse, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("target_id", req.TargetID)
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Amount == "" {
		return nil, toStatus(errs.Invalid("amount", "required"))
	}
	amount, err := ledger.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	bal, err := s.portal.AdjustWallet(ctx, a, id, amount, req.Description)
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.BalanceResponse{Balance: convert.Amount(bal)}, nil
}

// Reconcile verifies a wallet against its transaction log.
func (s *Server) Reconcile(ctx context.Context, req *portalv1.ReconcileRequest) (*portalv1.BalanceResponse, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("target_id", req.TargetID)
	if err != nil {
		return nil, toStatus(err)
	}
	bal, err := s.portal.Reconcile(ctx, a, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.BalanceResponse{Balance: convert.Amount(bal)}, nil
}

// --- Users ---

// DeleteUser removes an end user.
func (s *Server) DeleteUser(ctx context.Context, req *portalv1.UserRequest) (*portalv1.Empty, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("user_id", req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.portal.DeleteUser(ctx, a, id); err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.Empty{}, nil
}

// ResetDevices clears a user's registered devices.
func (s *Server) ResetDevices(ctx context.Context, req *portalv1.UserRequest) (*portalv1.Empty, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("user_id", req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.portal.ResetDevices(ctx, a, id); err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.Empty{}, nil
}

// RemoveDevice drops one device from a user.
func (s *Server) RemoveDevice(ctx context.Context, req *portalv1.RemoveDeviceRequest) (*portalv1.Empty, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("user_id", req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.portal.RemoveDevice(ctx, a, id, req.DeviceID); err != nil {
		return nil, toStatus(err)
	}
	return &portalv1.Empty{}, nil
}
