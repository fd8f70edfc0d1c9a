// Package repository implements API key and usage log persistence.
//
// Provides PostgreSQL and MySQL implementations with transaction support via
// database.GetTx(). PostgreSQL uses native UUID types, MySQL uses BINARY(16).
// Granted permission sets are stored as JSON documents.
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

// PostgreSQLAPIKeyRepository implements API key persistence for PostgreSQL.
type PostgreSQLAPIKeyRepository struct {
	db *sql.DB
}

// Create inserts a new API key.
func (p *PostgreSQLAPIKeyRepository) Create(ctx context.Context, key *apikeyDomain.APIKey) error {
	querier := database.GetTx(ctx, p.db)

	permissionsJSON, err := json.Marshal(key.GrantedPermissions)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal granted permissions")
	}

	query := `INSERT INTO api_keys (id, agent_id, tenant_id, key_name, secret_hash, key_prefix, status,
			  expires_at, granted_permissions, rate_limit_per_minute, rate_limit_per_hour,
			  last_used_at, created_at, revoked_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.AgentID,
		key.TenantID,
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
func (p *PostgreSQLAPIKeyRepository) Update(ctx context.Context, key *apikeyDomain.APIKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE api_keys
			  SET key_name = $1,
			  	  status = $2,
				  expires_at = $3,
				  rate_limit_per_minute = $4,
				  rate_limit_per_hour = $5,
				  revoked_at = $6
			  WHERE id = $7`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.KeyName,
		key.Status,
		key.ExpiresAt,
		key.RateLimitPerMinute,
		key.RateLimitPerHour,
		key.RevokedAt,
		key.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update api key")
	}
	return nil
}

// GetForTenant retrieves an API key by ID within a tenant. A key owned by a
// different tenant is reported as not found.
func (p *PostgreSQLAPIKeyRepository) GetForTenant(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
) (*apikeyDomain.APIKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := selectAPIKeyColumns + ` FROM api_keys WHERE id = $1 AND tenant_id = $2`

	key, err := scanAPIKey(querier.QueryRowContext(ctx, query, keyID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apikeyDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get api key")
	}
	return key, nil
}

// ListActiveByPrefix retrieves the active keys whose stored prefix matches the
// presented secret's prefix. This prunes the Argon2id verification set; the
// caller still verifies the full hash for each candidate.
func (p *PostgreSQLAPIKeyRepository) ListActiveByPrefix(
	ctx context.Context,
	keyPrefix string,
) ([]*apikeyDomain.APIKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := selectAPIKeyColumns + ` FROM api_keys WHERE status = $1 AND key_prefix = $2`

	rows, err := querier.QueryContext(ctx, query, apikeyDomain.StatusActive, keyPrefix)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list active api keys")
	}
	defer rows.Close()

	var keys []*apikeyDomain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
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
func (p *PostgreSQLAPIKeyRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.APIKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := selectAPIKeyColumns + ` FROM api_keys WHERE tenant_id = $1
			  ORDER BY created_at DESC OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, tenantID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list api keys")
	}
	defer rows.Close()

	var keys []*apikeyDomain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
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
func (p *PostgreSQLAPIKeyRepository) UpdateLastUsed(
	ctx context.Context,
	keyID uuid.UUID,
	usedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`

	if _, err := querier.ExecContext(ctx, query, usedAt, keyID); err != nil {
		return apperrors.Wrap(err, "failed to update api key last used")
	}
	return nil
}

const selectAPIKeyColumns = `SELECT id, agent_id, tenant_id, key_name, secret_hash, key_prefix, status,
			  expires_at, granted_permissions, rate_limit_per_minute, rate_limit_per_hour,
			  last_used_at, created_at, revoked_at`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (*apikeyDomain.APIKey, error) {
	var key apikeyDomain.APIKey
	var permissionsJSON []byte

	err := row.Scan(
		&key.ID,
		&key.AgentID,
		&key.TenantID,
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

	if len(permissionsJSON) > 0 {
		if err := json.Unmarshal(permissionsJSON, &key.GrantedPermissions); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal granted permissions")
		}
	}
	return &key, nil
}

// NewPostgreSQLAPIKeyRepository creates a new PostgreSQL API key repository.
func NewPostgreSQLAPIKeyRepository(db *sql.DB) *PostgreSQLAPIKeyRepository {
	return &PostgreSQLAPIKeyRepository{db: db}
}
