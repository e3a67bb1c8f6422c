package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/application/services"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	apperrors "github.com/obiora/CropAdvisoryDesign/backend/pkg/errors"
	"github.com/obiora/CropAdvisoryDesign/backend/pkg/idempotency"
)

const idempotencyWindowSeconds = 24 * 60 * 60

// DiagnosisHandler exposes the diagnosis pipeline over HTTP. The handler
// is deliberately thin: normalize the payload, dedupe resubmissions by
// idempotency key, and delegate to the service.
type DiagnosisHandler struct {
	service *services.DiagnosisService
	cache   providers.CacheProvider
}

// NewDiagnosisHandler creates a new diagnosis handler.
func NewDiagnosisHandler(service *services.DiagnosisService, cache providers.CacheProvider) *DiagnosisHandler {
	return &DiagnosisHandler{
		service: service,
		cache:   cache,
	}
}

type diagnosisRequest struct {
	FarmerID       string              `json:"farmer_id"`
	Modality       string              `json:"modality"`
	ImageBase64    string              `json:"image_base64,omitempty"`
	ImageMediaType string              `json:"image_media_type,omitempty"`
	Description    string              `json:"description,omitempty"`
	LabValues      []entities.LabValue `json:"lab_values,omitempty"`
	Crop           string              `json:"crop"`
	Location       string              `json:"location,omitempty"`
	GrowthStage    string              `json:"growth_stage,omitempty"`
}

// Diagnose handles POST /api/diagnoses
func (h *DiagnosisHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	var payload diagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	payload.Crop = strings.TrimSpace(payload.Crop)
	payload.Description = strings.TrimSpace(payload.Description)
	if payload.Crop == "" {
		respondWithError(w, http.StatusBadRequest, "crop is required")
		return
	}
	if payload.ImageBase64 == "" && payload.Description == "" && len(payload.LabValues) == 0 {
		respondWithError(w, http.StatusBadRequest, "at least one of image, description or lab values is required")
		return
	}

	modality := entities.InputModality(payload.Modality)
	switch modality {
	case entities.InputModalityPhoto, entities.InputModalityLabReport, entities.InputModalityHybrid:
	default:
		respondWithError(w, http.StatusBadRequest, "modality must be photo, lab_report or hybrid")
		return
	}

	// Dedupe resubmitted commands: same farmer, same evidence, same day.
	// Lab values are part of the evidence, so two lab reports that differ
	// only in readings must not collide.
	labSeed, _ := json.Marshal(payload.LabValues)
	key := idempotency.Key(payload.FarmerID, strings.Join([]string{
		string(modality),
		payload.Crop,
		payload.Description,
		payload.ImageBase64,
		string(labSeed),
	}, "|"))
	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), key); err == nil {
			var prior services.DiagnosisResult
			if json.Unmarshal(cached, &prior) == nil {
				respondWithJSON(w, http.StatusOK, &prior)
				return
			}
		}
	}

	input := &entities.NormalizedInput{
		ID:             uuid.New().String(),
		Modality:       modality,
		ImageBase64:    payload.ImageBase64,
		ImageMediaType: payload.ImageMediaType,
		Description:    payload.Description,
		LabValues:      payload.LabValues,
		Crop:           payload.Crop,
		Location:       strings.TrimSpace(payload.Location),
		GrowthStage:    strings.TrimSpace(payload.GrowthStage),
	}

	result, err := h.service.Diagnose(r.Context(), input)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeExhausted) {
			respondWithError(w, http.StatusBadGateway, "could not generate a reliable recommendation: "+err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "diagnosis failed")
		return
	}

	h.cacheResult(r.Context(), key, result)
	respondWithJSON(w, http.StatusOK, result)
}

func (h *DiagnosisHandler) cacheResult(ctx context.Context, key string, result *services.DiagnosisResult) {
	if h.cache == nil {
		return
	}
	if data, err := json.Marshal(result); err == nil {
		_ = h.cache.Set(ctx, key, data, idempotencyWindowSeconds)
	}
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
