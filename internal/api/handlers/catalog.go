package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/bomsearch/internal/api"
	"github.com/cloo-solutions/bomsearch/internal/domain"
)

type FamilyLister interface {
	ListAll(ctx context.Context) ([]domain.MaterialFamily, error)
}

type CatalogHandler struct {
	families FamilyLister
}

func NewCatalogHandler(families FamilyLister) *CatalogHandler {
	return &CatalogHandler{families: families}
}

type FamiliesResponse struct {
	Families []domain.MaterialFamily `json:"families"`
}

// ListFamilies handles GET /v1/families.
func (h *CatalogHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.families.ListAll(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if families == nil {
		families = []domain.MaterialFamily{}
	}
	api.Success(w, http.StatusOK, FamiliesResponse{Families: families})
}
