package aireport

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrModelNotFound  = errors.New("ai model not found")
	ErrReportNotFound = errors.New("ai report not found")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&AIModel{}, &AIReport{}, &ReviewSession{})
}

func (r *Repository) ListModels(ctx context.Context) ([]AIModel, error) {
	var models []AIModel
	err := r.db.WithContext(ctx).Order("model_name").Find(&models).Error
	return models, err
}

func (r *Repository) GetModel(ctx context.Context, id uuid.UUID) (*AIModel, error) {
	var model AIModel
	result := r.db.WithContext(ctx).First(&model, "model_id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrModelNotFound
	}
	return &model, result.Error
}

func (r *Repository) CreateReport(ctx context.Context, report *AIReport) error {
	if report.ReportID == uuid.Nil {
		report.ReportID = uuid.New()
	}
	report.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *Repository) GetReport(ctx context.Context, id uuid.UUID) (*AIReport, error) {
	var report AIReport
	result := r.db.WithContext(ctx).First(&report, "report_id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	return &report, result.Error
}

func (r *Repository) CreateReview(ctx context.Context, review *ReviewSession) error {
	if review.ReviewSessionID == uuid.Nil {
		review.ReviewSessionID = uuid.New()
	}
	review.ReviewedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(review).Error
}
