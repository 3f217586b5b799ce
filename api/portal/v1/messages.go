// Package portalv1 is the wire contract of the portal.v1.Portal gRPC service.
// Messages are plain structs carried by the JSON codec registered in codec.go;
// money travels as decimal strings with two fractional digits.
package portalv1

import "time"

type Transaction struct {
	ID           string    `json:"id"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

type Wallet struct {
	Balance      string        `json:"balance"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Principal carries only the fields its role has: Wallet for admin, subadmin
// and seller, UserCreationCharge for sellers, Devices for users.
type Principal struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Role               string    `json:"role"`
	CreatedBy          string    `json:"created_by,omitempty"`
	PlanExpiry         time.Time `json:"plan_expiry"`
	CreatedAt          time.Time `json:"created_at"`
	Wallet             *Wallet   `json:"wallet,omitempty"`
	UserCreationCharge string    `json:"user_creation_charge,omitempty"`
	Devices            []string  `json:"devices,omitempty"`
	Children           []string  `json:"children,omitempty"`
}

type Empty struct{}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Principal   *Principal `json:"principal"`
}

type BootstrapAdminRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	SetupSecret string `json:"setup_secret"`
}

type SetupStatusResponse struct {
	SetupNeeded bool `json:"setup_needed"`
}

type PrincipalResponse struct {
	Principal *Principal `json:"principal"`
}

type GetPrincipalRequest struct {
	ID string `json:"id"`
}

type DashboardStatsResponse struct {
	TotalUsers     int `json:"total_users"`
	TotalSellers   int `json:"total_sellers"`
	TotalSubadmins int `json:"total_subadmins"`
}

type ListSubordinatesRequest struct {
	Role      string `json:"role,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

type ListSubordinatesResponse struct {
	Principals []*Principal `json:"principals"`
}

type CreateSubordinateRequest struct {
	Role               string `json:"role,omitempty"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	InitialBalance     string `json:"initial_balance,omitempty"`
	UserCreationCharge string `json:"user_creation_charge,omitempty"`
	PlanDays           int    `json:"plan_days,omitempty"`
}

type AdjustWalletRequest struct {
	TargetID    string `json:"target_id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

type UserRequest struct {
	UserID string `json:"user_id"`
}

type RemoveDeviceRequest struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

type ReconcileRequest struct {
	TargetID string `json:"target_id"`
}
