package aireport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/mapdr-ai/platform/pkg/common/models"
	"github.com/mapdr-ai/platform/pkg/uploads"
)

// InstanceRegistry resolves SOP Instance UIDs to archived instances;
// *uploads.Repository satisfies it.
type InstanceRegistry interface {
	GetInstance(ctx context.Context, instanceUID string) (*uploads.DICOMInstance, error)
}

// FrameSource fetches one rendered frame of an instance; *pacs.Client
// satisfies it.
type FrameSource interface {
	InstanceFrame(ctx context.Context, sopInstanceUID string, frameNumber int) ([]byte, string, error)
}

// Predictor is the inference backend contract.
type Predictor interface {
	Predict(ctx context.Context, modelPath string, classNames []string, imageBytes []byte) (*models.PredictionResponse, error)
}

// ReportStore is the persistence surface of the AI service; *Repository is
// the gorm implementation.
type ReportStore interface {
	ListModels(ctx context.Context) ([]AIModel, error)
	CreateReport(ctx context.Context, report *AIReport) error
	GetReport(ctx context.Context, id uuid.UUID) (*AIReport, error)
	CreateReview(ctx context.Context, review *ReviewSession) error
}

var (
	ErrInstanceUnknown = errors.New("instance not found in registry")
	ErrInvalidReview   = errors.New("invalid reviewer status")
)

type PredictionRequest struct {
	StudyInstanceUID  string    `json:"studyInstanceUID"`
	SeriesInstanceUID string    `json:"seriesInstanceUID"`
	SOPInstanceUID    string    `json:"sopInstanceUID"`
	FrameNumber       int       `json:"frameNumber"`
	ModelID           uuid.UUID `json:"modelId"`
}

type ReviewRequest struct {
	ReportID         uuid.UUID       `json:"report_id"`
	UserID           *uuid.UUID      `json:"-"`
	ReviewerStatus   string          `json:"reviewer_status"`
	ReviewerComments string          `json:"reviewer_comments"`
	AnnotatedRegions json.RawMessage `json:"annotated_regions,omitempty"`
}

type Service struct {
	repo      ReportStore
	catalog   *Catalog
	instances InstanceRegistry
	frames    FrameSource
	predictor Predictor
	labels    LabelsConfig
}

func NewService(repo ReportStore, catalog *Catalog, instances InstanceRegistry, frames FrameSource, predictor Predictor, labels LabelsConfig) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalog,
		instances: instances,
		frames:    frames,
		predictor: predictor,
		labels:    labels,
	}
}

func (s *Service) ListModels(ctx context.Context) ([]AIModel, error) {
	return s.repo.ListModels(ctx)
}

// PredictInstance runs inference over an archived instance's rendered frame
// and persists the result as an AIReport tied to the instance's study.
func (s *Service) PredictInstance(ctx context.Context, req PredictionRequest) (*AIReport, error) {
	model, err := s.catalog.Acquire(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}

	instance, err := s.instances.GetInstance(ctx, req.SOPInstanceUID)
	if err != nil {
		if errors.Is(err, uploads.ErrInstanceNotFound) {
			return nil, ErrInstanceUnknown
		}
		return nil, err
	}

	frameBytes, _, err := s.frames.InstanceFrame(ctx, req.SOPInstanceUID, req.FrameNumber)
	if err != nil {
		return nil, fmt.Errorf("fetching frame %d of %s: %w", req.FrameNumber, req.SOPInstanceUID, err)
	}

	prediction, err := s.predictor.Predict(ctx, model.ModelPath, s.labels.For(model.ModelName), frameBytes)
	if err != nil {
		return nil, err
	}

	resultJSON, err := json.Marshal(prediction.PredictionResult)
	if err != nil {
		return nil, fmt.Errorf("encoding prediction result: %w", err)
	}

	report := &AIReport{
		StudyID:          instance.StudyID,
		ModelID:          model.ModelID,
		PredictionResult: resultJSON,
		HeatmapDataURL:   prediction.HeatmapURL,
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("persisting report: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"report_id": report.ReportID,
		"study_id":  instance.StudyID,
		"model":     model.ModelName,
		"class":     prediction.PredictionResult.ClassName,
	}).Info("AI report created")

	return report, nil
}

// PredictFile runs an ad-hoc prediction over uploaded image bytes without
// persisting anything.
func (s *Service) PredictFile(ctx context.Context, modelID uuid.UUID, imageBytes []byte) (*models.PredictionResponse, error) {
	model, err := s.catalog.Acquire(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return s.predictor.Predict(ctx, model.ModelPath, s.labels.For(model.ModelName), imageBytes)
}

// CreateReview records an expert's verdict on a report.
func (s *Service) CreateReview(ctx context.Context, req ReviewRequest) (*ReviewSession, error) {
	switch req.ReviewerStatus {
	case ReviewCorrect, ReviewIncorrect, ReviewIrrelevant:
	default:
		return nil, ErrInvalidReview
	}

	if _, err := s.repo.GetReport(ctx, req.ReportID); err != nil {
		return nil, err
	}

	review := &ReviewSession{
		ReportID:         req.ReportID,
		UserID:           req.UserID,
		ReviewerStatus:   req.ReviewerStatus,
		ReviewerComments: req.ReviewerComments,
		AnnotatedRegions: []byte(req.AnnotatedRegions),
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("persisting review: %w", err)
	}
	return review, nil
}
