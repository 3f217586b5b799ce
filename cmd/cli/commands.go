package main

import (
	"context"
	"errors"
	"flag"
	"io"

	portalv1 "github.com/and161185/reseller-portal/api/portal/v1"
)

// command is one subcommand; auth commands send the saved token.
type command struct {
	name  string
	usage string
	auth  bool
	run   func(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error)
}

var commands = []command{
	{"setup-status", "", false, cmdSetupStatus},
	{"bootstrap", "-u <username> -p <password> -secret <setup secret>", false, cmdBootstrap},
	{"login", "-u <username> -p <password>        (saves token)", false, cmdLogin},
	{"logout", "                                  (drops token)", false, nil},
	{"profile", "", true, cmdProfile},
	{"get", "-id <uuid>", true, cmdGet},
	{"stats", "                                   (admin)", true, cmdStats},
	{"list", "[-role r] [-created-by <uuid>]", true, cmdList},
	{"create", "[-role r] -u <username> -p <password> [-balance n] [-charge n] [-days n]", true, cmdCreate},
	{"adjust", "-id <uuid> -amount <signed> [-desc text]", true, cmdAdjust},
	{"delete-user", "-id <uuid>", true, cmdDeleteUser},
	{"reset-devices", "-id <uuid>", true, cmdResetDevices},
	{"remove-device", "-id <uuid> -device <id>", true, cmdRemoveDevice},
	{"reconcile", "-id <uuid>                         (admin)", true, cmdReconcile},
	{"version", "", false, nil},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name && c.run != nil {
			return c, true
		}
	}
	return command{}, false
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return errors.New("need -" + pairs[i])
		}
	}
	return nil
}

func cmdSetupStatus(ctx context.Context, cli portalv1.PortalClient, _ []string) (any, error) {
	return cli.SetupStatus(ctx, &portalv1.Empty{})
}

func cmdBootstrap(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
	fs := newFlags("bootstrap")
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	secret := fs.String("secret", "", "setup secret")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("u", *u, "p", *p, "secret", *secret); err != nil {
		return nil, err
	}
	return cli.BootstrapAdmin(ctx, &portalv1.BootstrapAdminRequest{Username: *u, Password: *p, SetupSecret: *secret})
}

func cmdLogin(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
	fs := newFlags("login")
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("u", *u, "p", *p); err != nil {
		return nil, err
	}
	resp, err := cli.Login(ctx, &portalv1.LoginRequest{Username: *u, Password: *p})
	if err != nil {
		return nil, err
	}
	tf := tokenFile{AccessToken: resp.AccessToken, ExpiresAt: resp.ExpiresAt, Username: *u}
	if resp.Principal != nil {
		tf.Role = resp.Principal.Role
	}
	if err := saveToken(tf); err != nil {
		return nil, err
	}
	return resp.Principal, nil
}

func cmdProfile(ctx context.Context, cli portalv1.PortalClient, _ []string) (any, error) {
	resp, err := cli.Profile(ctx, &portalv1.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Principal, nil
}

func cmdGet(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
	fs := newFlags("get")
	id := fs.String("id", "", "principal id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("id", *id); err != nil {
		return nil, err
	}
	resp, err := cli.GetPrincipal(ctx, &portalv1.GetPrincipalRequest{ID: *id})
	if err != nil {
		return nil, err
	}
	return resp.Principal, nil
}

func cmdStats(ctx context.Context, cli portalv1.PortalClient, _ []string) (any, error) {
	return cli.DashboardStats(ctx, &portalv1.Empty{})
}

// listRow is the compact form printed by list.
type listRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Balance  string `json:"balance,omitempty"`
	Devices  int    `json:"devices,omitempty"`
}

func cmdList(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
	fs := newFlags("list")
	role := fs.String("role", "", "tier to list")
	createdBy := fs.String("created-by", "", "creator id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	resp, err := cli.ListSubordinates(ctx, &portalv1.ListSubordinatesRequest{Role: *role, CreatedBy: *createdBy})
	if err != nil {
		return nil, err
	}
	rows := make([]listRow, 0, len(resp.Principals))
	for _, p := range resp.Principals {
		r := listRow{ID: p.ID, Username: p.Username, Role: p.Role, Devices: len(p.Devices)}
		if p.Wallet != nil {
			r.Balance = p.Wallet.Balance
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func cmdCreate(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
	fs := newFlags("create")
	var req portalv1.CreateSubordinateRequest
	fs.StringVar(&req.Role, "role", "", "subadmin, seller or user; defaults to the caller's child tier")
	fs.StringVar(&req.Username, "u", "", "username")
	fs.StringVar(&req.Password, "p", "", "password")
	fs.StringVar(&req.InitialBalance, "balance", "", "initial wallet balance")
	fs.StringVar(&req.UserCreationCharge, "charge", "", "seller's per-user charge")
	fs.IntVar(&req.PlanDays, "days", 0, "user plan length in days")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("u", req.Username, "p", req.Password); err != nil {
		return nil, err
	}
	resp, err := cli.CreateSubordinate(ctx, &req)
	if err != nil {
		return nil, err
	}
	return resp.Principal, nil
}

func cmdAdjust(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
	fs := newFlags("adjust")
	var req portalv1.AdjustWalletRequest
	fs.StringVar(&req.TargetID, "id", "", "target wallet owner")
	fs.StringVar(&req.Amount, "amount", "", "signed amount")
	fs.StringVar(&req.Description, "desc", "", "ledger description")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("id", req.TargetID, "amount", req.Amount); err != nil {
		return nil, err
	}
	return cli.AdjustWallet(ctx, &req)
}

func userCmd(name string, call func(portalv1.PortalClient, context.Context, *portalv1.UserRequest) error) func(context.Context, portalv1.PortalClient, []string) (any, error) {
	return func(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
		fs := newFlags(name)
		id := fs.String("id", "", "user id")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if err := required("id", *id); err != nil {
			return nil, err
		}
		if err := call(cli, ctx, &portalv1.UserRequest{UserID: *id}); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	}
}

var (
	cmdDeleteUser = userCmd("delete-user", func(c portalv1.PortalClient, ctx context.Context, r *portalv1.UserRequest) error {
		_, err := c.DeleteUser(ctx, r)
		return err
	})
	cmdResetDevices = userCmd("reset-devices", func(c portalv1.PortalClient, ctx context.Context, r *portalv1.UserRequest) error {
		_, err := c.ResetDevices(ctx, r)
		return err
	})
)

func cmdRemoveDevice(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
	fs := newFlags("remove-device")
	var req portalv1.RemoveDeviceRequest
	fs.StringVar(&req.UserID, "id", "", "user id")
	fs.StringVar(&req.DeviceID, "device", "", "device id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("id", req.UserID, "device", req.DeviceID); err != nil {
		return nil, err
	}
	if _, err := cli.RemoveDevice(ctx, &req); err != nil {
		return nil, err
	}
	return map[string]string{"status": "ok"}, nil
}

func cmdReconcile(ctx context.Context, cli portalv1.PortalClient, args []string) (any, error) {
	fs := newFlags("reconcile")
	id := fs.String("id", "", "wallet owner")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("id", *id); err != nil {
		return nil, err
	}
	return cli.Reconcile(ctx, &portalv1.ReconcileRequest{TargetID: *id})
}
