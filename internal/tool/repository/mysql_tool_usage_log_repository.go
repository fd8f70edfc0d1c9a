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

// MySQLToolUsageLogRepository implements tool execution audit persistence for
// MySQL. Rows are append-only.
type MySQLToolUsageLogRepository struct {
	db *sql.DB
}

// Create appends a tool usage log row.
func (m *MySQLToolUsageLogRepository) Create(ctx context.Context, log *toolDomain.UsageLog) error {
	querier := database.GetTx(ctx, m.db)

	id, err := log.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal usage log id")
	}
	toolID, err := log.ToolID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tool id")
	}
	keyID, err := log.KeyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal api key id")
	}
	tenantID, err := log.TenantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}

	var metadataJSON []byte
	if log.Metadata != nil {
		metadataJSON, err = json.Marshal(log.Metadata)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal usage log metadata")
		}
	}

	query := `INSERT INTO tool_usage_logs (id, tool_id, key_id, tenant_id, status, error_message,
			  execution_time_ms, metadata, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		toolID,
		keyID,
		tenantID,
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

// ListByTool retrieves a tool's execution audit rows with pagination, newest first.
func (m *MySQLToolUsageLogRepository) ListByTool(
	ctx context.Context,
	toolID, tenantID uuid.UUID,
	offset, limit int,
) ([]*toolDomain.UsageLog, error) {
	querier := database.GetTx(ctx, m.db)

	tool, err := toolID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tool id")
	}
	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, tool_id, key_id, tenant_id, status, error_message, execution_time_ms, metadata, created_at
			  FROM tool_usage_logs WHERE tool_id = ? AND tenant_id = ?
			  ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, tool, tenant, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list tool usage logs")
	}
	defer rows.Close()

	var logs []*toolDomain.UsageLog
	for rows.Next() {
		var log toolDomain.UsageLog
		var rawID, rawToolID, rawKeyID, rawTenantID []byte
		var metadataJSON []byte
		err := rows.Scan(
			&rawID,
			&rawToolID,
			&rawKeyID,
			&rawTenantID,
			&log.Status,
			&log.ErrorMessage,
			&log.ExecutionTimeMs,
			&metadataJSON,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan tool usage log")
		}
		if err := log.ID.UnmarshalBinary(rawID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal usage log id")
		}
		if err := log.ToolID.UnmarshalBinary(rawToolID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal tool id")
		}
		if err := log.KeyID.UnmarshalBinary(rawKeyID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal api key id")
		}
		if err := log.TenantID.UnmarshalBinary(rawTenantID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
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

// NewMySQLToolUsageLogRepository creates a new MySQL tool usage log repository.
func NewMySQLToolUsageLogRepository(db *sql.DB) *MySQLToolUsageLogRepository {
	return &MySQLToolUsageLogRepository{db: db}
}
