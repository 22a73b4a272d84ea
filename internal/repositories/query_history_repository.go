package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dataportal/internal/models"
)

type QueryHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewQueryHistoryRepository(pool *pgxpool.Pool) *QueryHistoryRepository {
	return &QueryHistoryRepository{pool: pool}
}

func (r *QueryHistoryRepository) Create(ctx context.Context, queryHistory *models.QueryHistory) error {
	queryHistory.Prepare()

	query := `
		INSERT INTO query_history (id, database_name, user_id, query_text, executed_at, success, execution_time_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		queryHistory.ID,
		queryHistory.DatabaseName,
		queryHistory.UserID,
		queryHistory.QueryText,
		queryHistory.ExecutedAt,
		queryHistory.Success,
		queryHistory.ExecutionTimeMs,
		queryHistory.ErrorMessage,
	)

	return err
}

// List returns the most recent executions, newest first. An empty
// databaseName or a nil userID does not filter.
func (r *QueryHistoryRepository) List(ctx context.Context, databaseName string, userID *uuid.UUID, limit int) ([]models.QueryHistory, error) {
	if limit <= 0 {
		limit = 100 // Default limit
	}

	query := `
		SELECT id, database_name, user_id, query_text, executed_at, success, execution_time_ms, error_message
		FROM query_history
		WHERE ($1 = '' OR database_name = $1)
		  AND ($2::uuid IS NULL OR user_id = $2)
		ORDER BY executed_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, databaseName, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	queries := []models.QueryHistory{}
	for rows.Next() {
		var qh models.QueryHistory
		err := rows.Scan(
			&qh.ID,
			&qh.DatabaseName,
			&qh.UserID,
			&qh.QueryText,
			&qh.ExecutedAt,
			&qh.Success,
			&qh.ExecutionTimeMs,
			&qh.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		queries = append(queries, qh)
	}

	return queries, rows.Err()
}
