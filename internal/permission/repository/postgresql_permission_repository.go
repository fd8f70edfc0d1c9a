// Package repository implements persistence for the permission catalog.
//
// Provides PostgreSQL and MySQL implementations with transaction support via
// database.GetTx(). PostgreSQL uses native UUID types, MySQL uses BINARY(16).
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
)

// PostgreSQLPermissionRepository implements permission catalog persistence for PostgreSQL.
type PostgreSQLPermissionRepository struct {
	db *sql.DB
}

// EnsurePresent idempotently inserts catalog entries that are not yet stored.
// Already-seeded names are left untouched, so the command is safe to run on
// every deployment.
func (p *PostgreSQLPermissionRepository) EnsurePresent(
	ctx context.Context,
	permissions []permissionDomain.Permission,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO permissions (id, name, description, module)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (name) DO NOTHING`

	for _, permission := range permissions {
		id := permission.ID
		if id == uuid.Nil {
			id = uuid.Must(uuid.NewV7())
		}
		_, err := querier.ExecContext(
			ctx,
			query,
			id,
			permission.Name,
			permission.Description,
			permission.Module,
		)
		if err != nil {
			return apperrors.Wrapf(err, "failed to seed permission %s", permission.Name)
		}
	}
	return nil
}

// GetByName retrieves a stored permission by its canonical name.
func (p *PostgreSQLPermissionRepository) GetByName(
	ctx context.Context,
	name permissionDomain.Name,
) (*permissionDomain.Permission, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, description, module FROM permissions WHERE name = $1`

	var permission permissionDomain.Permission
	err := querier.QueryRowContext(ctx, query, name).Scan(
		&permission.ID,
		&permission.Name,
		&permission.Description,
		&permission.Module,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, permissionDomain.ErrPermissionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get permission")
	}

	return &permission, nil
}

// List retrieves all stored permissions ordered by module and name.
func (p *PostgreSQLPermissionRepository) List(ctx context.Context) ([]*permissionDomain.Permission, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, description, module FROM permissions ORDER BY module, name`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list permissions")
	}
	defer rows.Close()

	var permissions []*permissionDomain.Permission
	for rows.Next() {
		var permission permissionDomain.Permission
		err := rows.Scan(
			&permission.ID,
			&permission.Name,
			&permission.Description,
			&permission.Module,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan permission")
		}
		permissions = append(permissions, &permission)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate permissions")
	}

	return permissions, nil
}

// NewPostgreSQLPermissionRepository creates a new PostgreSQL permission repository.
func NewPostgreSQLPermissionRepository(db *sql.DB) *PostgreSQLPermissionRepository {
	return &PostgreSQLPermissionRepository{db: db}
}
