package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
)

// MySQLAPIKeyRepository implements API key persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via database.GetTx().
type MySQLAPIKeyRepository struct {
	db *sql.DB
}

// Create inserts a new API key.
func (m *MySQLAPIKeyRepository) Create(ctx context.Context, key *apikeyDomain.APIKey) error {
	querier := database.GetTx(ctx, m.db)

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal api key id")
	}
	agentID, err := key.AgentID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal agent id")
	}
	tenantID, err := key.TenantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}
	permissionsJSON, err := json.Marshal(key.GrantedPermissions)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal granted permissions")
	}

	query := `INSERT INTO api_keys (id, agent_id, tenant_id, key_name, secret_hash, key_prefix, status,
			  expires_at, granted_permissions, rate_limit_per_minute, rate_limit_per_hour,
			  last_used_at, created_at, revoked_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		agentID,
		tenantID,
		key.KeyName,
		key.SecretHash,
		key.KeyPrefix,
		key.Status,
		key.ExpiresAt,
		permissionsJSON,
		key.RateLimitPerMinute,
		key.RateLimitPerHour,
		key.LastUsedAt,
		key.CreatedAt,
		key.RevokedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create api key")
	}
	return nil
}

// Update persists mutable key fields. The secret hash and prefix are fixed at
// issuance and never updated.
func (m *MySQLAPIKeyRepository) Update(ctx context.Context, key *apikeyDomain.APIKey) error {
	querier := database.GetTx(ctx, m.db)

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal api key id")
	}

	query := `UPDATE api_keys
			  SET key_name = ?,
			  	  status = ?,
				  expires_at = ?,
				  rate_limit_per_minute = ?,
				  rate_limit_per_hour = ?,
				  revoked_at = ?
			  WHERE id = ?`

	_, err = querier.ExecContext(
		ctx,
		query,
		key.KeyName,
		key.Status,
		key.ExpiresAt,
		key.RateLimitPerMinute,
		key.RateLimitPerHour,
		key.RevokedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update api key")
	}
	return nil
}

func scanMySQLAPIKey(scan func(dest ...any) error) (*apikeyDomain.APIKey, error) {
	var key apikeyDomain.APIKey
	var id, agentID, tenantID []byte
	var permissionsJSON []byte

	err := scan(
		&id,
		&agentID,
		&tenantID,
		&key.KeyName,
		&key.SecretHash,
		&key.KeyPrefix,
		&key.Status,
		&key.ExpiresAt,
		&permissionsJSON,
		&key.RateLimitPerMinute,
		&key.RateLimitPerHour,
		&key.LastUsedAt,
		&key.CreatedAt,
		&key.RevokedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := key.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal api key id")
	}
	if err := key.AgentID.UnmarshalBinary(agentID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal agent id")
	}
	if err := key.TenantID.UnmarshalBinary(tenantID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
	}
	if len(permissionsJSON) > 0 {
		if err := json.Unmarshal(permissionsJSON, &key.GrantedPermissions); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal granted permissions")
		}
	}
	return &key, nil
}

// GetForTenant retrieves an API key by ID within a tenant. A key owned by a
// different tenant is reported as not found.
func (m *MySQLAPIKeyRepository) GetForTenant(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
) (*apikeyDomain.APIKey, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal api key id")
	}
	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := selectAPIKeyColumns + ` FROM api_keys WHERE id = ? AND tenant_id = ?`

	row := querier.QueryRowContext(ctx, query, id, tenant)
	key, err := scanMySQLAPIKey(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apikeyDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get api key")
	}
	return key, nil
}

// ListActiveByPrefix retrieves the active keys whose stored prefix matches the
// presented secret's prefix.
func (m *MySQLAPIKeyRepository) ListActiveByPrefix(
	ctx context.Context,
	keyPrefix string,
) ([]*apikeyDomain.APIKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := selectAPIKeyColumns + ` FROM api_keys WHERE status = ? AND key_prefix = ?`

	rows, err := querier.QueryContext(ctx, query, apikeyDomain.StatusActive, keyPrefix)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list active api keys")
	}
	defer rows.Close()

	var keys []*apikeyDomain.APIKey
	for rows.Next() {
		key, err := scanMySQLAPIKey(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan api key")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate api keys")
	}
	return keys, nil
}

// List retrieves a tenant's API keys with pagination, newest first.
func (m *MySQLAPIKeyRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.APIKey, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := selectAPIKeyColumns + ` FROM api_keys WHERE tenant_id = ?
			  ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, tenant, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list api keys")
	}
	defer rows.Close()

	var keys []*apikeyDomain.APIKey
	for rows.Next() {
		key, err := scanMySQLAPIKey(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan api key")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate api keys")
	}
	return keys, nil
}

// UpdateLastUsed stamps the key's last successful authentication time.
func (m *MySQLAPIKeyRepository) UpdateLastUsed(
	ctx context.Context,
	keyID uuid.UUID,
	usedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal api key id")
	}

	query := `UPDATE api_keys SET last_used_at = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, usedAt, id); err != nil {
		return apperrors.Wrap(err, "failed to update api key last used")
	}
	return nil
}

// NewMySQLAPIKeyRepository creates a new MySQL API key repository.
func NewMySQLAPIKeyRepository(db *sql.DB) *MySQLAPIKeyRepository {
	return &MySQLAPIKeyRepository{db: db}
}
