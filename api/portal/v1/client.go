package portalv1

import (
	"context"

	"google.golang.org/grpc"
)

// PortalClient is the client API for the portal service.
type PortalClient interface {
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	BootstrapAdmin(ctx context.Context, in *BootstrapAdminRequest, opts ...grpc.CallOption) (*PrincipalResponse, error)
	SetupStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SetupStatusResponse, error)
	Profile(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*PrincipalResponse, error)
	GetPrincipal(ctx context.Context, in *GetPrincipalRequest, opts ...grpc.CallOption) (*PrincipalResponse, error)
	DashboardStats(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*DashboardStatsResponse, error)
	ListSubordinates(ctx context.Context, in *ListSubordinatesRequest, opts ...grpc.CallOption) (*ListSubordinatesResponse, error)
	CreateSubordinate(ctx context.Context, in *CreateSubordinateRequest, opts ...grpc.CallOption) (*PrincipalResponse, error)
	AdjustWallet(ctx context.Context, in *AdjustWalletRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	DeleteUser(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Empty, error)
	ResetDevices(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Empty, error)
	RemoveDevice(ctx context.Context, in *RemoveDeviceRequest, opts ...grpc.CallOption) (*Empty, error)
	Reconcile(ctx context.Context, in *ReconcileRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
}

type portalClient struct {
	cc grpc.ClientConnInterface
}

// NewPortalClient returns a client that speaks the JSON content-subtype on cc.
func NewPortalClient(cc grpc.ClientConnInterface) PortalClient {
	return &portalClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *portalClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, LoginMethod, in, opts)
}

func (c *portalClient) BootstrapAdmin(ctx context.Context, in *BootstrapAdminRequest, opts ...grpc.CallOption) (*PrincipalResponse, error) {
	return invoke[PrincipalResponse](ctx, c.cc, BootstrapAdminMethod, in, opts)
}

func (c *portalClient) SetupStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SetupStatusResponse, error) {
	return invoke[SetupStatusResponse](ctx, c.cc, SetupStatusMethod, in, opts)
}

func (c *portalClient) Profile(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*PrincipalResponse, error) {
	return invoke[PrincipalResponse](ctx, c.cc, ProfileMethod, in, opts)
}

func (c *portalClient) GetPrincipal(ctx context.Context, in *GetPrincipalRequest, opts ...grpc.CallOption) (*PrincipalResponse, error) {
	return invoke[PrincipalResponse](ctx, c.cc, GetPrincipalMethod, in, opts)
}

func (c *portalClient) DashboardStats(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*DashboardStatsResponse, error) {
	return invoke[DashboardStatsResponse](ctx, c.cc, DashboardStatsMethod, in, opts)
}

func (c *portalClient) ListSubordinates(ctx context.Context, in *ListSubordinatesRequest, opts ...grpc.CallOption) (*ListSubordinatesResponse, error) {
	return invoke[ListSubordinatesResponse](ctx, c.cc, ListSubordinatesMethod, in, opts)
}

func (c *portalClient) CreateSubordinate(ctx context.Context, in *CreateSubordinateRequest, opts ...grpc.CallOption) (*PrincipalResponse, error) {
	return invoke[PrincipalResponse](ctx, c.cc, CreateSubordinateMethod, in, opts)
}

func (c *portalClient) AdjustWallet(ctx context.Context, in *AdjustWalletRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, c.cc, AdjustWalletMethod, in, opts)
}

func (c *portalClient) DeleteUser(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, DeleteUserMethod, in, opts)
}

func (c *portalClient) ResetDevices(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ResetDevicesMethod, in, opts)
}

func (c *portalClient) RemoveDevice(ctx context.Context, in *RemoveDeviceRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, RemoveDeviceMethod, in, opts)
}

func (c *portalClient) Reconcile(ctx context.Context, in *ReconcileRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, c.cc, ReconcileMethod, in, opts)
}
