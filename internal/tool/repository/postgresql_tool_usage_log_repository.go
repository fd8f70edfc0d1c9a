package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
	toolDomain "github.com/allisson/agentauth/internal/tool/domain"
)

// PostgreSQLToolUsageLogRepository implements tool execution audit persistence
// for PostgreSQL. Rows are append-only.
type PostgreSQLToolUsageLogRepository struct {
	db *sql.DB
}

// Create appends a tool usage log row.
func (p *PostgreSQLToolUsageLogRepository) Create(ctx context.Context, log *toolDomain.UsageLog) error {
	querier := database.GetTx(ctx, p.db)

	var metadataJSON []byte
	if log.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(log.Metadata)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal usage log metadata")
		}
	}

	query := `INSERT INTO tool_usage_logs (id, tool_id, key_id, tenant_id, status, error_message,
			  execution_time_ms, metadata, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		log.ID,
		log.ToolID,
		log.KeyID,
		log.TenantID,
		log.Status,
		log.ErrorMessage,
		log.ExecutionTimeMs,
		metadataJSON,
		log.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create tool usage log")
	}
	return nil
}

// ListByTool retrieves a tool's execution audit rows with pagination, newest
// first. Tenant scoping is enforced in the query itself.
func (p *PostgreSQLToolUsageLogRepository) ListByTool(
	ctx context.Context,
	toolID, tenantID uuid.UUID,
	offset, limit int,
) ([]*toolDomain.UsageLog, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, tool_id, key_id, tenant_id, status, error_message, execution_time_ms, metadata, created_at
			  FROM tool_usage_logs WHERE tool_id = $1 AND tenant_id = $2
			  ORDER BY created_at DESC OFFSET $3 LIMIT $4`

	rows, err := querier.QueryContext(ctx, query, toolID, tenantID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list tool usage logs")
	}
	defer rows.Close()

	var logs []*toolDomain.UsageLog
	for rows.Next() {
		var log toolDomain.UsageLog
		var metadataJSON []byte
		err := rows.Scan(
			&log.ID,
			&log.ToolID,
			&log.KeyID,
			&log.TenantID,
			&log.Status,
			&log.ErrorMessage,
			&log.ExecutionTimeMs,
			&metadataJSON,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan tool usage log")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &log.Metadata); err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal usage log metadata")
			}
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate tool usage logs")
	}
	return logs, nil
}

// NewPostgreSQLToolUsageLogRepository creates a new PostgreSQL tool usage log repository.
func NewPostgreSQLToolUsageLogRepository(db *sql.DB) *PostgreSQLToolUsageLogRepository {
	return &PostgreSQLToolUsageLogRepository{db: db}
}
