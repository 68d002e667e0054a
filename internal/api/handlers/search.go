package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/bomsearch/internal/api"
	"github.com/cloo-solutions/bomsearch/internal/api/middleware"
	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/service"
)

// SearchLogSource tags search log rows written by the API.
const SearchLogSource = "api"

type Searcher interface {
	Search(ctx context.Context, item domain.BomLineItem, mode domain.SearchMode) (*domain.SearchResult, error)
	SearchBatch(ctx context.Context, req service.BatchRequest) (*domain.SourcingResult, error)
	Modes() []domain.SearchMode
}

type SearchRecorder interface {
	Record(ctx context.Context, source string, mode domain.SearchMode, result *domain.SourcingResult)
}

type SearchHandler struct {
	searcher Searcher
	recorder SearchRecorder
}

// NewSearchHandler creates a search handler. recorder may be nil.
func NewSearchHandler(searcher Searcher, recorder SearchRecorder) *SearchHandler {
	return &SearchHandler{searcher: searcher, recorder: recorder}
}

type SearchRequest struct {
	Item     string  `json:"item"`
	Spec     string  `json:"spec,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
	Mode     string  `json:"mode,omitempty"`
}

type BatchSearchRequest struct {
	Items    []domain.BomLineItem `json:"items"`
	Mode     string               `json:"mode,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

type ModesResponse struct {
	Modes []domain.SearchMode `json:"modes"`
}

func parseMode(s string) (domain.SearchMode, error) {
	if s == "" {
		return "", nil
	}
	return domain.ParseSearchMode(s)
}

// Search handles POST /v1/search for a single line item.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := parseMode(req.Mode)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	middleware.SetSearchTags(r.Context(), string(mode), 1)

	item := domain.BomLineItem{Item: req.Item, Spec: req.Spec, Quantity: req.Quantity}
	result, err := h.searcher.Search(r.Context(), item, mode)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.record(r.Context(), result.Mode, &domain.SourcingResult{
		BatchID:   middleware.GetRequestID(r.Context()),
		Results:   []domain.SearchResult{*result},
		TotalTime: result.ExecutionTime,
	})

	api.Success(w, http.StatusOK, result)
}

// SearchBatch handles POST /v1/search/batch.
func (h *SearchHandler) SearchBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := parseMode(req.Mode)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	middleware.SetSearchTags(r.Context(), string(mode), len(req.Items))

	result, err := h.searcher.SearchBatch(r.Context(), service.BatchRequest{
		Items:    req.Items,
		Mode:     mode,
		Warnings: req.Warnings,
		TraceID:  r.Header.Get(middleware.TraceIDHeader),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	logMode := mode
	if len(result.Results) > 0 {
		logMode = result.Results[0].Mode
	}
	h.record(r.Context(), logMode, result)

	api.Success(w, http.StatusOK, result)
}

// Modes handles GET /v1/modes.
func (h *SearchHandler) Modes(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, ModesResponse{Modes: h.searcher.Modes()})
}

func (h *SearchHandler) record(ctx context.Context, mode domain.SearchMode, result *domain.SourcingResult) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(ctx, SearchLogSource, mode, result)
}
