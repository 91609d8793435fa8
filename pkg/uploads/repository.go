package uploads

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPatientNotFound  = errors.New("patient not found")
	ErrUploadNotFound   = errors.New("upload record not found")
	ErrStudyNotFound    = errors.New("study not found")
	ErrInstanceNotFound = errors.New("instance not found")
)

// StudyFields are the attributes written on the study upsert performed when
// the first file of a batch is archived.
type StudyFields struct {
	PatientID      uuid.UUID
	UserID         *uuid.UUID
	ArchiveStudyID string
	Description    string
	StudyDate      time.Time
	StudyTime      time.Time
}

// Store is the durable registry the intake service and session processor
// work against. *Repository is the gorm implementation; tests substitute an
// in-memory fake.
type Store interface {
	CreatePatient(ctx context.Context, patient *Patient) error
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)

	CreateUpload(ctx context.Context, upload *FileUpload) error
	GetUpload(ctx context.Context, id uuid.UUID) (*FileUpload, error)
	UpdateUploadStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkUploadsFailed(ctx context.Context, ids []uuid.UUID) error

	UpsertStudy(ctx context.Context, studyInstanceUID string, fields StudyFields) (*DICOMStudy, error)
	AttachSession(ctx context.Context, studyID uuid.UUID, sessionID string) error
	FindStudyByInstanceUID(ctx context.Context, studyInstanceUID string) (*DICOMStudy, error)
	FindStudyBySession(ctx context.Context, sessionID string) (*DICOMStudy, error)

	EnsureInstance(ctx context.Context, instanceUID string, studyID uuid.UUID) error
	InstanceExists(ctx context.Context, instanceUID string) (bool, error)
	GetInstance(ctx context.Context, instanceUID string) (*DICOMInstance, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Patient{}, &FileUpload{}, &DICOMStudy{}, &DICOMInstance{})
}

func (r *Repository) CreatePatient(ctx context.Context, patient *Patient) error {
	if patient.PatientID == uuid.Nil {
		patient.PatientID = uuid.New()
	}
	patient.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(patient).Error
}

func (r *Repository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var patient Patient
	result := r.db.WithContext(ctx).First(&patient, "patient_id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrPatientNotFound
	}
	return &patient, result.Error
}

func (r *Repository) CreateUpload(ctx context.Context, upload *FileUpload) error {
	if upload.UploadID == uuid.Nil {
		upload.UploadID = uuid.New()
	}
	if upload.Status == "" {
		upload.Status = StatusPending
	}
	upload.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(upload).Error
}

func (r *Repository) GetUpload(ctx context.Context, id uuid.UUID) (*FileUpload, error) {
	var upload FileUpload
	result := r.db.WithContext(ctx).First(&upload, "upload_id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUploadNotFound
	}
	return &upload, result.Error
}

func (r *Repository) UpdateUploadStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&FileUpload{}).
		Where("upload_id = ?", id).
		Update("status", status).Error
}

func (r *Repository) MarkUploadsFailed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&FileUpload{}).
		Where("upload_id IN ?", ids).
		Update("status", StatusFailed).Error
}

// UpsertStudy creates or updates the study keyed by StudyInstanceUID.
// Re-running a session must not create a second row for the same study.
func (r *Repository) UpsertStudy(ctx context.Context, studyInstanceUID string, fields StudyFields) (*DICOMStudy, error) {
	var study DICOMStudy
	err := r.db.WithContext(ctx).First(&study, "study_instance_uid = ?", studyInstanceUID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		study = DICOMStudy{
			StudyID:          uuid.New(),
			StudyInstanceUID: &studyInstanceUID,
		}
	}

	study.PatientID = fields.PatientID
	study.UserID = fields.UserID
	study.ArchiveStudyID = fields.ArchiveStudyID
	study.StudyDescription = fields.Description
	study.StudyDate = fields.StudyDate
	study.StudyTime = fields.StudyTime

	if err := r.db.WithContext(ctx).Save(&study).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

func (r *Repository) AttachSession(ctx context.Context, studyID uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).Model(&DICOMStudy{}).
		Where("study_id = ?", studyID).
		Update("session_id", sessionID).Error
}

func (r *Repository) FindStudyByInstanceUID(ctx context.Context, studyInstanceUID string) (*DICOMStudy, error) {
	var study DICOMStudy
	result := r.db.WithContext(ctx).First(&study, "study_instance_uid = ?", studyInstanceUID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrStudyNotFound
	}
	return &study, result.Error
}

func (r *Repository) FindStudyBySession(ctx context.Context, sessionID string) (*DICOMStudy, error) {
	var study DICOMStudy
	result := r.db.WithContext(ctx).First(&study, "session_id = ?", sessionID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrStudyNotFound
	}
	return &study, result.Error
}

// EnsureInstance records an archived frame idempotently: a duplicate SOP
// Instance UID must not create a second row.
func (r *Repository) EnsureInstance(ctx context.Context, instanceUID string, studyID uuid.UUID) error {
	instance := DICOMInstance{
		InstanceUID: instanceUID,
		StudyID:     studyID,
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Where("instance_uid = ?", instanceUID).
		FirstOrCreate(&instance).Error
}

func (r *Repository) InstanceExists(ctx context.Context, instanceUID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DICOMInstance{}).
		Where("instance_uid = ?", instanceUID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) GetInstance(ctx context.Context, instanceUID string) (*DICOMInstance, error) {
	var instance DICOMInstance
	result := r.db.WithContext(ctx).First(&instance, "instance_uid = ?", instanceUID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrInstanceNotFound
	}
	return &instance, result.Error
}
