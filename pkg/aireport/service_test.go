package aireport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mapdr-ai/platform/pkg/common/models"
	"github.com/mapdr-ai/platform/pkg/uploads"
)

type fakePredictor struct {
	gotModelPath string
	gotClasses   []string
	gotImage     []byte
	response     *models.PredictionResponse
	err          error
}

func (p *fakePredictor) Predict(ctx context.Context, modelPath string, classNames []string, imageBytes []byte) (*models.PredictionResponse, error) {
	p.gotModelPath = modelPath
	p.gotClasses = classNames
	p.gotImage = imageBytes
	return p.response, p.err
}

type fakeInstances struct {
	known map[string]uuid.UUID
}

func (f *fakeInstances) GetInstance(ctx context.Context, instanceUID string) (*uploads.DICOMInstance, error) {
	studyID, ok := f.known[instanceUID]
	if !ok {
		return nil, uploads.ErrInstanceNotFound
	}
	return &uploads.DICOMInstance{InstanceUID: instanceUID, StudyID: studyID}, nil
}

type fakeFrames struct {
	gotUID   string
	gotFrame int
	payload  []byte
	err      error
}

func (f *fakeFrames) InstanceFrame(ctx context.Context, sopInstanceUID string, frameNumber int) ([]byte, string, error) {
	f.gotUID = sopInstanceUID
	f.gotFrame = frameNumber
	return f.payload, "image/png", f.err
}

type fakeReportStore struct {
	reports []*AIReport
	reviews []*ReviewSession
}

func (f *fakeReportStore) ListModels(ctx context.Context) ([]AIModel, error) { return nil, nil }

func (f *fakeReportStore) CreateReport(ctx context.Context, report *AIReport) error {
	if report.ReportID == uuid.Nil {
		report.ReportID = uuid.New()
	}
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeReportStore) GetReport(ctx context.Context, id uuid.UUID) (*AIReport, error) {
	for _, r := range f.reports {
		if r.ReportID == id {
			return r, nil
		}
	}
	return nil, ErrReportNotFound
}

func (f *fakeReportStore) CreateReview(ctx context.Context, review *ReviewSession) error {
	f.reviews = append(f.reviews, review)
	return nil
}

func TestPredictInstancePersistsReport(t *testing.T) {
	modelID := uuid.New()
	studyID := uuid.New()
	catalog := NewCatalog(&fakeLoader{models: map[uuid.UUID]*AIModel{
		modelID: {ModelID: modelID, ModelName: "densenet", ModelPath: "/models/densenet.pt"},
	}})
	store := &fakeReportStore{}
	frames := &fakeFrames{payload: []byte("frame-png")}
	predictor := &fakePredictor{response: &models.PredictionResponse{
		PredictionResult: models.PredictionResult{ClassName: "Mild_Dementia", Confidence: 0.91},
		HeatmapURL:       "data:image/png;base64,xyz",
	}}
	svc := NewService(store, catalog, &fakeInstances{known: map[string]uuid.UUID{"2.25.77": studyID}}, frames, predictor, DefaultLabels())

	report, err := svc.PredictInstance(context.Background(), PredictionRequest{
		SOPInstanceUID: "2.25.77",
		FrameNumber:    3,
		ModelID:        modelID,
	})
	if err != nil {
		t.Fatalf("PredictInstance failed: %v", err)
	}

	if frames.gotUID != "2.25.77" || frames.gotFrame != 3 {
		t.Fatalf("expected frame 3 of 2.25.77 to be fetched, got frame %d of %s", frames.gotFrame, frames.gotUID)
	}
	if string(predictor.gotImage) != "frame-png" {
		t.Fatal("fetched frame bytes not forwarded to the predictor")
	}
	if len(store.reports) != 1 {
		t.Fatalf("expected one persisted report, got %d", len(store.reports))
	}
	if report.StudyID != studyID {
		t.Fatalf("report tied to study %s, want %s", report.StudyID, studyID)
	}
	if !strings.Contains(string(report.PredictionResult), "Mild_Dementia") {
		t.Fatalf("prediction result not persisted: %s", report.PredictionResult)
	}
	if report.HeatmapDataURL != "data:image/png;base64,xyz" {
		t.Fatalf("heatmap not carried over: %q", report.HeatmapDataURL)
	}
}

func TestPredictFile(t *testing.T) {
	modelID := uuid.New()
	catalog := NewCatalog(&fakeLoader{models: map[uuid.UUID]*AIModel{
		modelID: {ModelID: modelID, ModelName: "densenet", ModelPath: "/models/densenet.pt"},
	}})
	predictor := &fakePredictor{response: &models.PredictionResponse{
		PredictionResult: models.PredictionResult{ClassName: "Non_Dementia", Confidence: 0.85},
	}}
	svc := NewService(nil, catalog, nil, nil, predictor, DefaultLabels())

	resp, err := svc.PredictFile(context.Background(), modelID, []byte("png"))
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if resp.PredictionResult.ClassName != "Non_Dementia" {
		t.Fatalf("unexpected result: %+v", resp.PredictionResult)
	}
	if predictor.gotModelPath != "/models/densenet.pt" {
		t.Fatalf("expected the catalog's model path, got %q", predictor.gotModelPath)
	}
	if len(predictor.gotClasses) != 4 {
		t.Fatalf("expected the default label set, got %v", predictor.gotClasses)
	}
	if string(predictor.gotImage) != "png" {
		t.Fatal("image bytes not forwarded")
	}
}

func TestPredictFileUnknownModel(t *testing.T) {
	svc := NewService(nil, NewCatalog(&fakeLoader{models: map[uuid.UUID]*AIModel{}}), nil, nil, &fakePredictor{}, DefaultLabels())
	if _, err := svc.PredictFile(context.Background(), uuid.New(), []byte("png")); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestPredictInstanceUnknownInstance(t *testing.T) {
	modelID := uuid.New()
	catalog := NewCatalog(&fakeLoader{models: map[uuid.UUID]*AIModel{
		modelID: {ModelID: modelID, ModelName: "densenet"},
	}})
	svc := NewService(nil, catalog, &fakeInstances{known: map[string]uuid.UUID{}}, nil, &fakePredictor{}, DefaultLabels())

	_, err := svc.PredictInstance(context.Background(), PredictionRequest{
		SOPInstanceUID: "2.25.404",
		ModelID:        modelID,
	})
	if !errors.Is(err, ErrInstanceUnknown) {
		t.Fatalf("expected ErrInstanceUnknown, got %v", err)
	}
}

func TestCreateReviewRejectsUnknownStatus(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil, DefaultLabels())
	_, err := svc.CreateReview(context.Background(), ReviewRequest{
		ReportID:       uuid.New(),
		ReviewerStatus: "MAYBE",
	})
	if !errors.Is(err, ErrInvalidReview) {
		t.Fatalf("expected ErrInvalidReview, got %v", err)
	}
}
