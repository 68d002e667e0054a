package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

func TestSearchLogger_Record(t *testing.T) {
	repo := new(MockSearchLogRepository)
	repo.On("CreateSearchLog", mock.Anything, mock.MatchedBy(func(e domain.SearchLog) bool {
		return e.BatchID == "b1" && e.Source == "api" && e.Mode == domain.SearchModeHybrid &&
			e.ItemCount == 1 && e.MatchCount == 1 && e.WarningCount == 2 && e.Duration == time.Second
	})).Return("log-1", nil)

	result := &domain.SourcingResult{
		BatchID:   "b1",
		Warnings:  []string{"row 2 skipped"},
		Results:   []domain.SearchResult{{Matches: []domain.ProductMatch{match("a", "1")}, Warnings: []string{"fallback"}}},
		TotalTime: time.Second,
	}
	NewSearchLogger(repo, nil).Record(context.Background(), "api", domain.SearchModeHybrid, result)

	repo.AssertExpectations(t)
}

func TestSearchLogger_DetachedFromRequestContext(t *testing.T) {
	repo := new(MockSearchLogRepository)
	repo.On("CreateSearchLog", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	}), mock.Anything).Return("log-1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewSearchLogger(repo, nil).Record(ctx, "api", domain.SearchModeOff, &domain.SourcingResult{BatchID: "b2"})

	repo.AssertExpectations(t)
}

func TestSearchLogger_FailureIsSwallowed(t *testing.T) {
	repo := new(MockSearchLogRepository)
	repo.On("CreateSearchLog", mock.Anything, mock.Anything).Return("", errors.New("insert failed"))

	assert.NotPanics(t, func() {
		NewSearchLogger(repo, nil).Record(context.Background(), "cli", domain.SearchModeOff, &domain.SourcingResult{})
	})
	assert.NotPanics(t, func() {
		NewSearchLogger(nil, nil).Record(context.Background(), "cli", domain.SearchModeOff, &domain.SourcingResult{})
		var nilLogger *SearchLogger
		nilLogger.Record(context.Background(), "cli", domain.SearchModeOff, nil)
	})
}
