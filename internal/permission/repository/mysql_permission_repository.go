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

// MySQLPermissionRepository implements permission catalog persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via database.GetTx().
type MySQLPermissionRepository struct {
	db *sql.DB
}

// EnsurePresent idempotently inserts catalog entries that are not yet stored.
func (m *MySQLPermissionRepository) EnsurePresent(
	ctx context.Context,
	permissions []permissionDomain.Permission,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT IGNORE INTO permissions (id, name, description, module)
			  VALUES (?, ?, ?, ?)`

	for _, permission := range permissions {
		id := permission.ID
		if id == uuid.Nil {
			id = uuid.Must(uuid.NewV7())
		}
		binaryID, err := id.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal permission id")
		}
		_, err = querier.ExecContext(
			ctx,
			query,
			binaryID,
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
func (m *MySQLPermissionRepository) GetByName(
	ctx context.Context,
	name permissionDomain.Name,
) (*permissionDomain.Permission, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, description, module FROM permissions WHERE name = ?`

	var (
		permission permissionDomain.Permission
		binaryID   []byte
	)
	err := querier.QueryRowContext(ctx, query, name).Scan(
		&binaryID,
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

	if err := permission.ID.UnmarshalBinary(binaryID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal permission id")
	}

	return &permission, nil
}

// List retrieves all stored permissions ordered by module and name.
func (m *MySQLPermissionRepository) List(ctx context.Context) ([]*permissionDomain.Permission, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, description, module FROM permissions ORDER BY module, name`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list permissions")
	}
	defer rows.Close()

	var permissions []*permissionDomain.Permission
	for rows.Next() {
		var (
			permission permissionDomain.Permission
			binaryID   []byte
		)
		err := rows.Scan(
			&binaryID,
			&permission.Name,
			&permission.Description,
			&permission.Module,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan permission")
		}
		if err := permission.ID.UnmarshalBinary(binaryID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal permission id")
		}
		permissions = append(permissions, &permission)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate permissions")
	}

	return permissions, nil
}

// NewMySQLPermissionRepository creates a new MySQL permission repository.
func NewMySQLPermissionRepository(db *sql.DB) *MySQLPermissionRepository {
	return &MySQLPermissionRepository{db: db}
}
