package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
)

// MySQLUsageLogRepository implements API key usage log persistence for MySQL.
// Rows are append-only.
type MySQLUsageLogRepository struct {
	db *sql.DB
}

// Create appends a usage log row.
func (m *MySQLUsageLogRepository) Create(ctx context.Context, log *apikeyDomain.UsageLog) error {
	querier := database.GetTx(ctx, m.db)

	id, err := log.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal usage log id")
	}
	keyID, err := log.KeyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal api key id")
	}

	query := `INSERT INTO api_key_usage_logs (id, key_id, endpoint, outcome, latency_ms, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		keyID,
		log.Endpoint,
		log.Outcome,
		log.LatencyMs,
		log.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create usage log")
	}
	return nil
}

// CountAdmittedSince counts the key's admitted calls inside the trailing
// window. Rows rejected by the limiter do not count toward the window.
func (m *MySQLUsageLogRepository) CountAdmittedSince(
	ctx context.Context,
	keyID uuid.UUID,
	since time.Time,
) (int, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal api key id")
	}

	query := `SELECT COUNT(*) FROM api_key_usage_logs
			  WHERE key_id = ? AND created_at >= ? AND outcome <> ?`

	var count int
	err = querier.QueryRowContext(ctx, query, id, since, apikeyDomain.UsageOutcomeRateLimited).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count usage logs")
	}
	return count, nil
}

// ListByKey retrieves a key's usage log rows with pagination, newest first.
func (m *MySQLUsageLogRepository) ListByKey(
	ctx context.Context,
	keyID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.UsageLog, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal api key id")
	}

	query := `SELECT id, key_id, endpoint, outcome, latency_ms, created_at
			  FROM api_key_usage_logs WHERE key_id = ?
			  ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, id, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list usage logs")
	}
	defer rows.Close()

	var logs []*apikeyDomain.UsageLog
	for rows.Next() {
		var log apikeyDomain.UsageLog
		var rawID, rawKeyID []byte
		err := rows.Scan(
			&rawID,
			&rawKeyID,
			&log.Endpoint,
			&log.Outcome,
			&log.LatencyMs,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan usage log")
		}
		if err := log.ID.UnmarshalBinary(rawID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal usage log id")
		}
		if err := log.KeyID.UnmarshalBinary(rawKeyID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal api key id")
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate usage logs")
	}
	return logs, nil
}

// NewMySQLUsageLogRepository creates a new MySQL usage log repository.
func NewMySQLUsageLogRepository(db *sql.DB) *MySQLUsageLogRepository {
	return &MySQLUsageLogRepository{db: db}
}
