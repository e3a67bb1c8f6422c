package routes

import (
	"net/http"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/api/handlers"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/api/middleware"
)

// Router wires the HTTP surface. Everything interesting lives behind the
// services; this stays glue.
type Router struct {
	mux              *http.ServeMux
	diagnosisHandler *handlers.DiagnosisHandler
	sourceHandler    *handlers.SourceHandler
}

// NewRouter creates a new router
func NewRouter(diagnosisHandler *handlers.DiagnosisHandler, sourceHandler *handlers.SourceHandler) *Router {
	r := &Router{
		mux:              http.NewServeMux(),
		diagnosisHandler: diagnosisHandler,
		sourceHandler:    sourceHandler,
	}
	r.register()
	return r
}

func (r *Router) register() {
	r.mux.HandleFunc("POST /api/diagnoses", r.diagnosisHandler.Diagnose)
	r.mux.HandleFunc("GET /api/sources", r.sourceHandler.ListSources)
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

// Handler returns the root handler with middleware applied
func (r *Router) Handler() http.Handler {
	return middleware.LoggingMiddleware(r.mux)
}
