package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every Kafka message travels in.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // upload-session-completed, upload-session-failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// UploadSessionMessage is one batch of uploaded files dispatched to the
// upload worker. Uploads preserve the client's submission order; the first
// item anchors the study identity for the whole batch.
type UploadSessionMessage struct {
	PatientID string       `json:"patient_id"`
	SessionID string       `json:"session_id"`
	Attempt   int          `json:"attempt"`
	Uploads   []UploadItem `json:"uploads"`
}

type UploadItem struct {
	UploadID         string `json:"upload_id"`
	Content          []byte `json:"content"`
	OriginalFilename string `json:"original_filename"`
}

// PredictionResult is the structured output of one inference run.
type PredictionResult struct {
	ClassIndex       int                `json:"class_index"`
	ClassName        string             `json:"class_name"`
	Confidence       float64            `json:"confidence"`
	AllProbabilities map[string]float64 `json:"all_probabilities"`
	BBox             []int              `json:"bbox"` // x, y, w, h of the region of interest
}

// PredictionResponse is what the AI service returns to callers: the
// classification plus a rendered heatmap inlined as a data URL and the
// dimensions of the source frame.
type PredictionResponse struct {
	PredictionResult PredictionResult `json:"prediction_result"`
	HeatmapURL       string           `json:"heatmap_url"`
	ImageWidth       int              `json:"image_width"`
	ImageHeight      int              `json:"image_height"`
}

// User is a platform operator (radiologist, technician, reviewer).
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
