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

// PostgreSQLUsageLogRepository implements API key usage log persistence for
// PostgreSQL. Rows are append-only.
type PostgreSQLUsageLogRepository struct {
	db *sql.DB
}

// Create appends a usage log row.
func (p *PostgreSQLUsageLogRepository) Create(ctx context.Context, log *apikeyDomain.UsageLog) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO api_key_usage_logs (id, key_id, endpoint, outcome, latency_ms, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		log.ID,
		log.KeyID,
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
// window. Rows rejected by the limiter do not count toward the window, so a
// throttled caller's retries cannot extend its own penalty.
func (p *PostgreSQLUsageLogRepository) CountAdmittedSince(
	ctx context.Context,
	keyID uuid.UUID,
	since time.Time,
) (int, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM api_key_usage_logs
			  WHERE key_id = $1 AND created_at >= $2 AND outcome <> $3`

	var count int
	err := querier.QueryRowContext(ctx, query, keyID, since, apikeyDomain.UsageOutcomeRateLimited).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count usage logs")
	}
	return count, nil
}

// ListByKey retrieves a key's usage log rows with pagination, newest first.
func (p *PostgreSQLUsageLogRepository) ListByKey(
	ctx context.Context,
	keyID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.UsageLog, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, key_id, endpoint, outcome, latency_ms, created_at
			  FROM api_key_usage_logs WHERE key_id = $1
			  ORDER BY created_at DESC OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, keyID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list usage logs")
	}
	defer rows.Close()

	var logs []*apikeyDomain.UsageLog
	for rows.Next() {
		var log apikeyDomain.UsageLog
		err := rows.Scan(
			&log.ID,
			&log.KeyID,
			&log.Endpoint,
			&log.Outcome,
			&log.LatencyMs,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan usage log")
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate usage logs")
	}
	return logs, nil
}

// NewPostgreSQLUsageLogRepository creates a new PostgreSQL usage log repository.
func NewPostgreSQLUsageLogRepository(db *sql.DB) *PostgreSQLUsageLogRepository {
	return &PostgreSQLUsageLogRepository{db: db}
}
