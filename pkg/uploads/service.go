package uploads

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/mapdr-ai/platform/pkg/common/models"
	"github.com/mapdr-ai/platform/pkg/dicomutil"
)

const (
	PatientTypeNew      = "new"
	PatientTypeExisting = "existing"
)

// BatchFile is one file of an intake request, already read into memory.
type BatchFile struct {
	Name    string
	Content []byte
}

// IntakeRequest is one client-initiated batch upload.
type IntakeRequest struct {
	PatientType string
	PatientUUID string
	FullName    string
	DateOfBirth string // 2006-01-02
	UserID      *uuid.UUID
	Files       []BatchFile
}

// IntakeResponse acknowledges a scheduled session.
type IntakeResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// SessionStatus is the status-query surface: PENDING until the study row
// exists, COMPLETED once it carries a study instance UID.
type SessionStatus struct {
	Status           string `json:"status"`
	StudyInstanceUID string `json:"study_instance_uid,omitempty"`
}

// Service handles synchronous intake (validation, registry writes, dispatch)
// and session status queries. All heavy work happens in the worker.
type Service struct {
	store    Store
	producer SessionPublisher
	cache    *StatusCache
}

func NewService(store Store, producer SessionPublisher, cache *StatusCache) *Service {
	return &Service{store: store, producer: producer, cache: cache}
}

// Submit validates a batch and schedules it as one upload session. All input
// errors surface here, synchronously; nothing is persisted or dispatched when
// validation fails.
func (s *Service) Submit(ctx context.Context, req IntakeRequest) (*IntakeResponse, error) {
	if len(req.Files) == 0 {
		return nil, ValidationError{reason: errors.New("select at least one file to upload")}
	}

	// Duplicate guard: a SOP Instance UID already in the registry means the
	// image was ingested before; reject before any work is scheduled.
	for _, f := range req.Files {
		ds, err := dicomutil.ReadMeta(f.Content)
		if err != nil {
			continue // non-DICOM files get fresh UIDs during synthesis
		}
		sopUID, ok := dicomutil.SOPInstanceUID(&ds)
		if !ok {
			continue
		}
		exists, err := s.store.InstanceExists(ctx, sopUID)
		if err != nil {
			return nil, fmt.Errorf("checking instance %s: %w", sopUID, err)
		}
		if exists {
			return nil, ValidationError{reason: fmt.Errorf("DICOM image %q already exists in the system", f.Name)}
		}
	}

	patient, err := s.resolvePatient(ctx, req)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	items := make([]models.UploadItem, 0, len(req.Files))
	for _, f := range req.Files {
		upload := &FileUpload{
			UserID:           req.UserID,
			PatientID:        patient.PatientID,
			OriginalFilename: f.Name,
			FileFormat:       fileFormat(f.Name),
			Status:           StatusPending,
		}
		if err := s.store.CreateUpload(ctx, upload); err != nil {
			return nil, fmt.Errorf("persisting upload record for %q: %w", f.Name, err)
		}
		items = append(items, models.UploadItem{
			UploadID:         upload.UploadID.String(),
			Content:          f.Content,
			OriginalFilename: f.Name,
		})
	}

	msg := models.UploadSessionMessage{
		PatientID: patient.PatientID.String(),
		SessionID: sessionID,
		Attempt:   0,
		Uploads:   items,
	}
	if err := s.producer.PublishSession(ctx, msg); err != nil {
		return nil, fmt.Errorf("dispatching upload session: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"patient_id": patient.PatientID,
		"files":      len(items),
	}).Info("upload session accepted")

	return &IntakeResponse{Status: "processing", SessionID: sessionID}, nil
}

// resolvePatient prefers the patient of an already-known study when the
// first file's StudyInstanceUID matches one, so re-uploads of an existing
// exam never fork a second patient record.
func (s *Service) resolvePatient(ctx context.Context, req IntakeRequest) (*Patient, error) {
	if ds, err := dicomutil.ReadMeta(req.Files[0].Content); err == nil {
		if studyUID, ok := dicomutil.StudyInstanceUID(&ds); ok {
			study, err := s.store.FindStudyByInstanceUID(ctx, studyUID)
			if err == nil {
				return s.store.GetPatient(ctx, study.PatientID)
			}
			if !errors.Is(err, ErrStudyNotFound) {
				return nil, err
			}
		}
	}

	switch req.PatientType {
	case PatientTypeExisting:
		if req.PatientUUID == "" {
			return nil, ValidationError{reason: errors.New("patient UUID required for a returning patient")}
		}
		id, err := uuid.Parse(req.PatientUUID)
		if err != nil {
			return nil, ValidationError{reason: fmt.Errorf("no patient found with UUID: %s", req.PatientUUID)}
		}
		patient, err := s.store.GetPatient(ctx, id)
		if errors.Is(err, ErrPatientNotFound) {
			return nil, ValidationError{reason: fmt.Errorf("no patient found with UUID: %s", req.PatientUUID)}
		}
		return patient, err

	case PatientTypeNew:
		if req.FullName == "" || req.DateOfBirth == "" {
			return nil, ValidationError{reason: errors.New("full name and date of birth required for a new patient")}
		}
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, ValidationError{reason: fmt.Errorf("invalid date of birth %q", req.DateOfBirth)}
		}
		patient := &Patient{FullName: req.FullName, DateOfBirth: dob}
		if err := s.store.CreatePatient(ctx, patient); err != nil {
			return nil, fmt.Errorf("creating patient: %w", err)
		}
		return patient, nil

	default:
		return nil, ValidationError{reason: errors.New("select a patient type (new or existing)")}
	}
}

// Status resolves a session correlation id to the state of its batch.
func (s *Service) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if s.cache != nil {
		if status, ok := s.cache.Get(ctx, sessionID); ok {
			return status, nil
		}
	}

	study, err := s.store.FindStudyBySession(ctx, sessionID)
	if errors.Is(err, ErrStudyNotFound) {
		return &SessionStatus{Status: StatusPending}, nil
	}
	if err != nil {
		return nil, err
	}

	if study.StudyInstanceUID == nil {
		return &SessionStatus{Status: StatusProcessing}, nil
	}

	status := &SessionStatus{Status: StatusCompleted, StudyInstanceUID: *study.StudyInstanceUID}
	if s.cache != nil {
		s.cache.Set(ctx, sessionID, status)
	}
	return status, nil
}

func fileFormat(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "unknown"
	}
	return strings.ToLower(ext)
}
