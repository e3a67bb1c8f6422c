package services

import (
	"context"
	"testing"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	apperrors "github.com/obiora/CropAdvisoryDesign/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeKnowledgeSearch struct {
	text     []entities.Candidate
	image    []entities.Candidate
	textErr  error
	imageErr error
	queries  []string
}

func (f *fakeKnowledgeSearch) Search(_ context.Context, query string, modality entities.Modality, _ int) ([]entities.Candidate, error) {
	f.queries = append(f.queries, query)
	if modality == entities.ModalityText {
		return f.text, f.textErr
	}
	return f.image, f.imageErr
}

func (f *fakeKnowledgeSearch) Index(_ context.Context, _ *entities.KnowledgeChunk) error { return nil }
func (f *fakeKnowledgeSearch) Delete(_ context.Context, _ string) error                  { return nil }

type signalingAuditRepository struct {
	record *entities.RetrievalAuditRecord
	done   chan struct{}
}

func newSignalingAuditRepository() *signalingAuditRepository {
	return &signalingAuditRepository{done: make(chan struct{}, 1)}
}

func (r *signalingAuditRepository) Create(_ context.Context, record *entities.RetrievalAuditRecord) error {
	r.record = record
	r.done <- struct{}{}
	return nil
}

func (r *signalingAuditRepository) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit record was never written")
	}
}

func newDiagnosisFixture(search *fakeKnowledgeSearch, gen *scriptedGenerator, auditRepo *signalingAuditRepository) *DiagnosisService {
	return NewDiagnosisService(
		search,
		NewContextAssemblerService(0.5, 4000),
		NewRecommendationService(gen, 2, nil),
		NewRetrievalAuditService(auditRepo, 0.4, nil),
		10,
		nil,
	)
}

func TestDiagnose_HappyPath(t *testing.T) {
	search := &fakeKnowledgeSearch{
		text: []entities.Candidate{
			candidate("chunk-1", 0.9, entities.ModalityText, "rust pustules on both leaf surfaces"),
		},
		image: []entities.Candidate{
			candidate("chunk-2", 0.7, entities.ModalityImage, "orange pustule close-up"),
		},
	}
	gen := &scriptedGenerator{responses: []string{validResponseJSON}}
	auditRepo := newSignalingAuditRepository()
	svc := newDiagnosisFixture(search, gen, auditRepo)

	result, err := svc.Diagnose(context.Background(), textInput())

	assert.NoError(t, err)
	assert.NotEmpty(t, result.RecommendationID)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 2, result.ContextChunks)
	assert.Equal(t, "maize common rust", result.Response.Recommendation.Diagnosis.Condition)

	auditRepo.wait(t)
	assert.Equal(t, "input-1", auditRepo.record.InputID)
	assert.Equal(t, result.RecommendationID, auditRepo.record.RecommendationID)
	assert.Len(t, auditRepo.record.Candidates, 2)
	// chunk-1 is cited by the generated recommendation.
	assert.Len(t, auditRepo.record.UsedChunks, 1)
	assert.Equal(t, "chunk-1", auditRepo.record.UsedChunks[0].ID)
}

func TestDiagnose_SearchOutageDegradesToEmptyContext(t *testing.T) {
	search := &fakeKnowledgeSearch{
		textErr:  repositories.ErrSearchUnavailable,
		imageErr: repositories.ErrSearchUnavailable,
	}
	gen := &scriptedGenerator{responses: []string{validResponseJSON}}
	auditRepo := newSignalingAuditRepository()
	svc := newDiagnosisFixture(search, gen, auditRepo)

	result, err := svc.Diagnose(context.Background(), textInput())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.ContextChunks)
	assert.Equal(t, 1, gen.calls)
	auditRepo.wait(t)
	assert.Empty(t, auditRepo.record.Candidates)
}

func TestDiagnose_OneLegFailureKeepsOther(t *testing.T) {
	search := &fakeKnowledgeSearch{
		text: []entities.Candidate{
			candidate("chunk-1", 0.9, entities.ModalityText, "reference text"),
		},
		imageErr: repositories.ErrSearchUnavailable,
	}
	gen := &scriptedGenerator{responses: []string{validResponseJSON}}
	auditRepo := newSignalingAuditRepository()
	svc := newDiagnosisFixture(search, gen, auditRepo)

	result, err := svc.Diagnose(context.Background(), textInput())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.ContextChunks)
}

func TestDiagnose_ExhaustionSurfaces(t *testing.T) {
	search := &fakeKnowledgeSearch{}
	gen := &scriptedGenerator{responses: []string{"bad", "bad"}}
	svc := newDiagnosisFixture(search, gen, newSignalingAuditRepository())

	result, err := svc.Diagnose(context.Background(), textInput())

	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExhausted))
}

func TestDiagnose_ValidationFailureStillAudited(t *testing.T) {
	search := &fakeKnowledgeSearch{
		text: []entities.Candidate{
			candidate("chunk-1", 0.9, entities.ModalityText, "reference text"),
		},
	}
	gen := &scriptedGenerator{responses: []string{validationFailureJSON}}
	auditRepo := newSignalingAuditRepository()
	svc := newDiagnosisFixture(search, gen, auditRepo)

	result, err := svc.Diagnose(context.Background(), photoInput())

	assert.NoError(t, err)
	assert.True(t, result.Response.IsValidationFailure())
	auditRepo.wait(t)
	// Nothing was cited, so the assembled chunk counts as missed.
	assert.Empty(t, auditRepo.record.UsedChunks)
	assert.Len(t, auditRepo.record.MissedChunks, 1)
}

func TestBuildRetrievalQuery(t *testing.T) {
	input := &entities.NormalizedInput{
		Crop:        "maize",
		GrowthStage: "V6",
		Description: "yellowing lower leaves",
		LabValues:   []entities.LabValue{{Name: "soil nitrogen", Value: 8}},
	}
	assert.Equal(t, "maize V6 yellowing lower leaves soil nitrogen", buildRetrievalQuery(input))

	assert.Equal(t, "maize", buildRetrievalQuery(&entities.NormalizedInput{Crop: "maize"}))
}
