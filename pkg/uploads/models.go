package uploads

import (
	"time"

	"github.com/google/uuid"
)

// FileUpload status lifecycle. PENDING is set at batch submission; the
// session processor drives records through PROCESSING to COMPLETED, and any
// session-level failure moves every record of the batch to FAILED.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Patient is an identity record, created on first upload and never mutated
// or deleted by this subsystem.
type Patient struct {
	PatientID   uuid.UUID `json:"patient_id" gorm:"type:uuid;primaryKey;column:patient_id"`
	FullName    string    `json:"full_name" gorm:"column:full_name"`
	DateOfBirth time.Time `json:"date_of_birth" gorm:"column:date_of_birth"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Patient) TableName() string {
	return "patients"
}

// FileUpload is one uploaded artifact of a batch.
type FileUpload struct {
	UploadID         uuid.UUID  `json:"upload_id" gorm:"type:uuid;primaryKey;column:upload_id"`
	UserID           *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;column:user_id"`
	PatientID        uuid.UUID  `json:"patient_id" gorm:"type:uuid;column:patient_id;not null"`
	OriginalFilename string     `json:"original_filename" gorm:"column:original_filename"`
	FileFormat       string     `json:"file_format" gorm:"column:file_format"`
	Status           string     `json:"status" gorm:"column:status"`
	CreatedAt        time.Time  `json:"created_at" gorm:"column:created_at"`
}

func (FileUpload) TableName() string {
	return "file_uploads"
}

// DICOMStudy is one clinical exam. ArchiveStudyID is the archive's
// correlation identifier, unique once known. StudyInstanceUID keys the
// upsert performed when the first file of a batch lands in the archive.
// SessionID lets a client poll an in-flight batch.
type DICOMStudy struct {
	StudyID          uuid.UUID  `json:"study_id" gorm:"type:uuid;primaryKey;column:study_id"`
	PatientID        uuid.UUID  `json:"patient_id" gorm:"type:uuid;column:patient_id;not null"`
	UserID           *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;column:user_id"`
	StudyDescription string     `json:"study_description" gorm:"column:study_description"`
	StudyDate        time.Time  `json:"study_date" gorm:"column:study_date"`
	StudyTime        time.Time  `json:"study_time" gorm:"column:study_time"`
	ArchiveStudyID   string     `json:"archive_study_id" gorm:"column:archive_study_id;uniqueIndex"`
	StudyInstanceUID *string    `json:"study_instance_uid,omitempty" gorm:"column:study_instance_uid;uniqueIndex"`
	SessionID        *string    `json:"session_id,omitempty" gorm:"column:session_id;uniqueIndex"`
}

func (DICOMStudy) TableName() string {
	return "dicom_studies"
}

// DICOMInstance records one archived image frame by its SOP Instance UID.
// A UID already present here signals the image has been ingested before.
type DICOMInstance struct {
	InstanceUID string    `json:"instance_uid" gorm:"primaryKey;column:instance_uid"`
	StudyID     uuid.UUID `json:"study_id" gorm:"type:uuid;column:study_id;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

func (DICOMInstance) TableName() string {
	return "dicom_instances"
}
