package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

// SearchLogRepository stores one summary row per search request.
type SearchLogRepository struct {
	db dbtx
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{db: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry domain.SearchLog) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO search_logs (batch_id, trace_id, source, mode, item_count, match_count, warning_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		entry.BatchID,
		nullableString(entry.TraceID),
		entry.Source,
		string(entry.Mode),
		entry.ItemCount,
		entry.MatchCount,
		entry.WarningCount,
		entry.Duration.Milliseconds(),
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
