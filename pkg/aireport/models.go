package aireport

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Expert verdicts on an AI report.
const (
	ReviewCorrect    = "CORRECT"
	ReviewIncorrect  = "INCORRECT"
	ReviewIrrelevant = "IRRELEVANT"
)

// AIModel is a catalog entry for a deployed inference model.
type AIModel struct {
	ModelID      uuid.UUID `json:"model_id" gorm:"type:uuid;primaryKey;column:model_id"`
	ModelName    string    `json:"model_name" gorm:"column:model_name;uniqueIndex"`
	ModelVersion string    `json:"model_version" gorm:"column:model_version"`
	Description  string    `json:"description" gorm:"column:description"`
	ModelPath    string    `json:"model_path" gorm:"column:model_path"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

func (AIModel) TableName() string {
	return "ai_models"
}

// AIReport is one inference result tied to a study. PredictionResult holds
// the structured classification; the heatmap is stored as an inline data URL.
type AIReport struct {
	ReportID         uuid.UUID      `json:"report_id" gorm:"type:uuid;primaryKey;column:report_id"`
	StudyID          uuid.UUID      `json:"study_id" gorm:"type:uuid;column:study_id;not null"`
	ModelID          uuid.UUID      `json:"model_id" gorm:"type:uuid;column:model_id;not null"`
	PredictionResult datatypes.JSON `json:"prediction_result" gorm:"column:prediction_result"`
	HeatmapDataURL   string         `json:"heatmap_url" gorm:"column:heatmap_data_url"`
	CreatedAt        time.Time      `json:"created_at" gorm:"column:created_at"`
}

func (AIReport) TableName() string {
	return "ai_reports"
}

// ReviewSession is an expert's correctness judgment on a report.
type ReviewSession struct {
	ReviewSessionID  uuid.UUID      `json:"review_session_id" gorm:"type:uuid;primaryKey;column:review_session_id"`
	ReportID         uuid.UUID      `json:"report_id" gorm:"type:uuid;column:report_id;not null"`
	UserID           *uuid.UUID     `json:"user_id,omitempty" gorm:"type:uuid;column:user_id"`
	ReviewerStatus   string         `json:"reviewer_status" gorm:"column:reviewer_status"`
	ReviewerComments string         `json:"reviewer_comments" gorm:"column:reviewer_comments"`
	AnnotatedRegions datatypes.JSON `json:"annotated_regions,omitempty" gorm:"column:annotated_regions"`
	ReviewedAt       time.Time      `json:"reviewed_at" gorm:"column:reviewed_at"`
}

func (ReviewSession) TableName() string {
	return "review_sessions"
}
