// Package usecase exposes the permission catalog to callers and owns the
// one-time seeding step executed at deployment.
package usecase

import (
	"context"

	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
)

// PermissionRepository defines persistence operations for the permission catalog.
type PermissionRepository interface {
	// EnsurePresent idempotently inserts missing catalog entries.
	EnsurePresent(ctx context.Context, permissions []permissionDomain.Permission) error

	// GetByName retrieves a stored permission by its canonical name.
	// Returns ErrPermissionNotFound if not stored.
	GetByName(ctx context.Context, name permissionDomain.Name) (*permissionDomain.Permission, error)

	// List retrieves all stored permissions.
	List(ctx context.Context) ([]*permissionDomain.Permission, error)
}

// PermissionUseCase exposes catalog reads and the idempotent seed step.
type PermissionUseCase interface {
	// Catalog returns the compiled-in permission catalog. This is the set
	// every runtime check consults; the database copy only exists so roles
	// and keys can reference permission rows by id.
	Catalog() []permissionDomain.Permission

	// Seed ensures every catalog entry is present in the store. Executed
	// once per deployment by the seed command, never as a runtime code path.
	Seed(ctx context.Context) error
}

type permissionUseCase struct {
	permissionRepo PermissionRepository
}

// Catalog returns a copy of the compiled-in catalog.
func (p *permissionUseCase) Catalog() []permissionDomain.Permission {
	return permissionDomain.Catalog()
}

// Seed idempotently writes the catalog to the store.
func (p *permissionUseCase) Seed(ctx context.Context) error {
	return p.permissionRepo.EnsurePresent(ctx, permissionDomain.Catalog())
}

// NewPermissionUseCase creates a new PermissionUseCase with the provided repository.
func NewPermissionUseCase(permissionRepo PermissionRepository) PermissionUseCase {
	return &permissionUseCase{permissionRepo: permissionRepo}
}
