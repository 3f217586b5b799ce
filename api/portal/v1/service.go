package portalv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "portal.v1.Portal"

// Full method names.
const (
	LoginMethod             = "/" + ServiceName + "/Login"
	BootstrapAdminMethod    = "/" + ServiceName + "/BootstrapAdmin"
	SetupStatusMethod       = "/" + ServiceName + "/SetupStatus"
	ProfileMethod           = "/" + ServiceName + "/Profile"
	GetPrincipalMethod      = "/" + ServiceName + "/GetPrincipal"
	DashboardStatsMethod    = "/" + ServiceName + "/DashboardStats"
	ListSubordinatesMethod  = "/" + ServiceName + "/ListSubordinates"
	CreateSubordinateMethod = "/" + ServiceName + "/CreateSubordinate"
	AdjustWalletMethod      = "/" + ServiceName + "/AdjustWallet"
	DeleteUserMethod        = "/" + ServiceName + "/DeleteUser"
	ResetDevicesMethod      = "/" + ServiceName + "/ResetDevices"
	RemoveDeviceMethod      = "/" + ServiceName + "/RemoveDevice"
	ReconcileMethod         = "/" + ServiceName + "/Reconcile"
)

// PortalServer is the server API for the portal service.
type PortalServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	BootstrapAdmin(context.Context, *BootstrapAdminRequest) (*PrincipalResponse, error)
	SetupStatus(context.Context, *Empty) (*SetupStatusResponse, error)
	Profile(context.Context, *Empty) (*PrincipalResponse, error)
	GetPrincipal(context.Context, *GetPrincipalRequest) (*PrincipalResponse, error)
	DashboardStats(context.Context, *Empty) (*DashboardStatsResponse, error)
	ListSubordinates(context.Context, *ListSubordinatesRequest) (*ListSubordinatesResponse, error)
	CreateSubordinate(context.Context, *CreateSubordinateRequest) (*PrincipalResponse, error)
	AdjustWallet(context.Context, *AdjustWalletRequest) (*BalanceResponse, error)
	DeleteUser(context.Context, *UserRequest) (*Empty, error)
	ResetDevices(context.Context, *UserRequest) (*Empty, error)
	RemoveDevice(context.Context, *RemoveDeviceRequest) (*Empty, error)
	Reconcile(context.Context, *ReconcileRequest) (*BalanceResponse, error)
}

// UnimplementedPortalServer answers every method with codes.Unimplemented.
type UnimplementedPortalServer struct{}

func unimplemented(m string) error { return status.Errorf(codes.Unimplemented, "method %s not implemented", m) }

func (UnimplementedPortalServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, unimplemented("Login")
}
func (UnimplementedPortalServer) BootstrapAdmin(context.Context, *BootstrapAdminRequest) (*PrincipalResponse, error) {
	return nil, unimplemented("BootstrapAdmin")
}
func (UnimplementedPortalServer) SetupStatus(context.Context, *Empty) (*SetupStatusResponse, error) {
	return nil, unimplemented("SetupStatus")
}
func (UnimplementedPortalServer) Profile(context.Context, *Empty) (*PrincipalResponse, error) {
	return nil, unimplemented("Profile")
}
func (UnimplementedPortalServer) GetPrincipal(context.Context, *GetPrincipalRequest) (*PrincipalResponse, error) {
	return nil, unimplemented("GetPrincipal")
}
func (UnimplementedPortalServer) DashboardStats(context.Context, *Empty) (*DashboardStatsResponse, error) {
	return nil, unimplemented("DashboardStats")
}
func (UnimplementedPortalServer) ListSubordinates(context.Context, *ListSubordinatesRequest) (*ListSubordinatesResponse, error) {
	return nil, unimplemented("ListSubordinates")
}
func (UnimplementedPortalServer) CreateSubordinate(context.Context, *CreateSubordinateRequest) (*PrincipalResponse, error) {
	return nil, unimplemented("CreateSubordinate")
}
func (UnimplementedPortalServer) AdjustWallet(context.Context, *AdjustWalletRequest) (*BalanceResponse, error) {
	return nil, unimplemented("AdjustWallet")
}
func (UnimplementedPortalServer) DeleteUser(context.Context, *UserRequest) (*Empty, error) {
	return nil, unimplemented("DeleteUser")
}
func (UnimplementedPortalServer) ResetDevices(context.Context, *UserRequest) (*Empty, error) {
	return nil, unimplemented("ResetDevices")
}
func (UnimplementedPortalServer) RemoveDevice(context.Context, *RemoveDeviceRequest) (*Empty, error) {
	return nil, unimplemented("RemoveDevice")
}
func (UnimplementedPortalServer) Reconcile(context.Context, *ReconcileRequest) (*BalanceResponse, error) {
	return nil, unimplemented("Reconcile")
}

// RegisterPortalServer registers srv on s.
func RegisterPortalServer(s grpc.ServiceRegistrar, srv PortalServer) {
	s.RegisterService(&PortalServiceDesc, srv)
}

// unary builds the method descriptor for one RPC.
func unary[Req, Resp any](name string, call func(PortalServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PortalServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PortalServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// PortalServiceDesc describes portal.v1.Portal for grpc.Server.
var PortalServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PortalServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", PortalServer.Login),
		unary("BootstrapAdmin", PortalServer.BootstrapAdmin),
		unary("SetupStatus", PortalServer.SetupStatus),
		unary("Profile", PortalServer.Profile),
		unary("GetPrincipal", PortalServer.GetPrincipal),
		unary("DashboardStats", PortalServer.DashboardStats),
		unary("ListSubordinates", PortalServer.ListSubordinates),
		unary("CreateSubordinate", PortalServer.CreateSubordinate),
		unary("AdjustWallet", PortalServer.AdjustWallet),
		unary("DeleteUser", PortalServer.DeleteUser),
		unary("ResetDevices", PortalServer.ResetDevices),
		unary("RemoveDevice", PortalServer.RemoveDevice),
		unary("Reconcile", PortalServer.Reconcile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portal/v1/portal.proto",
}
