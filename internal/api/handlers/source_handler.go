package handlers

import (
	"net/http"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/application/services"
)

// SourceHandler exposes the source registry read surface.
type SourceHandler struct {
	registry *services.SourceRegistryService
}

// NewSourceHandler creates a new source handler.
func NewSourceHandler(registry *services.SourceRegistryService) *SourceHandler {
	return &SourceHandler{registry: registry}
}

// ListSources handles GET /api/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.registry.ListSources(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}
