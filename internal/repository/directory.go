// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/reseller-portal/internal/model"
)

// ListFilter narrows a role roster.
type ListFilter struct {
	// CreatedBy restricts the listing to principals created by this id.
	CreatedBy *uuid.UUID
}

// DirectoryRepository stores principals in one namespace keyed by unique username.
type DirectoryRepository interface {
	// FindByUsername loads a principal by exact, case-sensitive username.
	FindByUsername(ctx context.Context, username string) (model.Principal, error)
	// FindByID loads a principal by ID.
	FindByID(ctx context.Context, id uuid.UUID) (model.Principal, error)
	// LockByID loads a principal and holds its row until the enclosing transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (model.Principal, error)
	// Insert adds a principal; a taken username yields errs.ErrDuplicateUsername.
	Insert(ctx context.Context, p model.Principal) error
	// ListByRole enumerates one tier, oldest first.
	ListByRole(ctx context.Context, role model.Role, f ListFilter) ([]model.Principal, error)
	// CountByRole counts one tier.
	CountByRole(ctx context.Context, role model.Role) (int, error)
	// Remove deletes a user-role principal.
	Remove(ctx context.Context, id uuid.UUID) error
	// SetDevices replaces a user's device list.
	SetDevices(ctx context.Context, id uuid.UUID, devices []string) error
}
