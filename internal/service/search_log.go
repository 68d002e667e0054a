package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

const searchLogTimeout = 2 * time.Second

// SearchLogRepository persists search summaries.
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, entry domain.SearchLog) (string, error)
}

// SearchLogger records search summaries on a best-effort basis.
type SearchLogger struct {
	repo   SearchLogRepository
	logger *zap.Logger
}

// NewSearchLogger creates a SearchLogger. A nil repo disables logging.
func NewSearchLogger(repo SearchLogRepository, logger *zap.Logger) *SearchLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchLogger{repo: repo, logger: logger}
}

// Record stores a summary of result. Failures are logged, never returned.
// The write is detached from ctx so a finished request does not cancel it.
func (l *SearchLogger) Record(ctx context.Context, source string, mode domain.SearchMode, result *domain.SourcingResult) {
	if l == nil || l.repo == nil || result == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), searchLogTimeout)
	defer cancel()

	entry := domain.NewSearchLog(source, mode, result)
	if _, err := l.repo.CreateSearchLog(writeCtx, entry); err != nil {
		l.logger.Warn("Failed to record search log",
			zap.String("batch_id", entry.BatchID),
			zap.Error(err),
		)
	}
}
