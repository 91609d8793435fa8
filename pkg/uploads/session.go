package uploads

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/mapdr-ai/platform/pkg/common/models"
	"github.com/mapdr-ai/platform/pkg/dicomutil"
	"github.com/mapdr-ai/platform/pkg/pacs"
	"github.com/sirupsen/logrus"
)

// Archive is the slice of the PACS client the processor needs.
type Archive interface {
	Submit(ctx context.Context, dicomBytes []byte) (*pacs.SubmitResult, error)
	WaitForStudy(ctx context.Context, archiveStudyID string) bool
}

// Processor runs one upload session: it normalizes every file of the batch
// into DICOM, pushes each to the archive, and reconciles the archive's
// identifiers into the registry. Files are processed strictly in input
// order; the first file's submission response anchors the study identity
// for the whole batch.
type Processor struct {
	store   Store
	archive Archive
}

func NewProcessor(store Store, archive Archive) *Processor {
	return &Processor{store: store, archive: archive}
}

// Run executes one attempt of a session. On any failure it marks every
// upload record of the batch FAILED and returns the error; scheduling a
// retry is the caller's job. Re-running is safe: the study upsert and the
// instance get-or-create absorb partial writes from an earlier attempt.
func (p *Processor) Run(ctx context.Context, msg models.UploadSessionMessage) error {
	if len(msg.Uploads) == 0 {
		return nil
	}

	log := logger.Log.WithFields(logrus.Fields{
		"session_id": msg.SessionID,
		"patient_id": msg.PatientID,
		"files":      len(msg.Uploads),
		"attempt":    msg.Attempt,
	})

	if err := p.run(ctx, msg, log); err != nil {
		log.WithError(err).Error("upload session failed")
		p.markAllFailed(ctx, msg, log)
		return err
	}
	return nil
}

func (p *Processor) run(ctx context.Context, msg models.UploadSessionMessage, log *logrus.Entry) error {
	patientID, err := uuid.Parse(msg.PatientID)
	if err != nil {
		return fmt.Errorf("invalid patient id %q: %w", msg.PatientID, err)
	}
	patient, err := p.store.GetPatient(ctx, patientID)
	if err != nil {
		return fmt.Errorf("resolving patient %s: %w", patientID, err)
	}

	// The batch shares one StudyInstanceUID: read it from the first file
	// when that file is DICOM, otherwise mint a fresh one. A mixed batch of
	// photos and scans still forms one coherent study.
	studyUID := dicomutil.NewUID()
	if ds, err := dicomutil.ReadMeta(msg.Uploads[0].Content); err == nil {
		if uid, ok := dicomutil.StudyInstanceUID(&ds); ok {
			studyUID = uid
		}
	}
	// One synthetic series for every non-DICOM input of the batch.
	seriesUID := dicomutil.NewUID()

	log.WithField("study_instance_uid", studyUID).Info("processing upload session")

	var study *DICOMStudy
	var archiveStudyID string

	for i, item := range msg.Uploads {
		uploadID, err := uuid.Parse(item.UploadID)
		if err != nil {
			return fmt.Errorf("invalid upload id %q: %w", item.UploadID, err)
		}

		// Persist immediately so status queries mid-batch see real progress.
		if err := p.store.UpdateUploadStatus(ctx, uploadID, StatusProcessing); err != nil {
			return fmt.Errorf("marking upload %s processing: %w", uploadID, err)
		}

		content := item.Content
		ds, err := dicomutil.Read(content)
		if err != nil {
			// Not DICOM: synthesize one, then re-parse metadata so the rest
			// of the loop sees a consistent dataset view.
			content, err = dicomutil.FromImage(item.Content, dicomutil.PatientInfo{
				ID:          patient.PatientID.String(),
				FullName:    patient.FullName,
				DateOfBirth: patient.DateOfBirth,
			}, studyUID, seriesUID, i+1)
			if err != nil {
				return fmt.Errorf("synthesizing DICOM for %s: %w", item.OriginalFilename, err)
			}
			ds, err = dicomutil.ReadMeta(content)
			if err != nil {
				return fmt.Errorf("re-parsing synthesized DICOM for %s: %w", item.OriginalFilename, err)
			}
		}

		result, err := p.archive.Submit(ctx, content)
		if err != nil {
			return fmt.Errorf("archiving %s: %w", item.OriginalFilename, err)
		}

		if i == 0 {
			archiveStudyID = result.ParentStudy
			if archiveStudyID == "" {
				return fmt.Errorf("archive returned no parent study id for %s", item.OriginalFilename)
			}

			upload, err := p.store.GetUpload(ctx, uploadID)
			if err != nil {
				return fmt.Errorf("loading upload %s: %w", uploadID, err)
			}

			studyDate, studyTime := dicomutil.StudyDateTime(&ds)
			study, err = p.store.UpsertStudy(ctx, studyUID, StudyFields{
				PatientID:      patient.PatientID,
				UserID:         upload.UserID,
				ArchiveStudyID: archiveStudyID,
				Description:    dicomutil.StudyDescription(&ds),
				StudyDate:      studyDate,
				StudyTime:      studyTime,
			})
			if err != nil {
				return fmt.Errorf("upserting study %s: %w", studyUID, err)
			}
		}

		sopUID, ok := dicomutil.SOPInstanceUID(&ds)
		if !ok {
			return fmt.Errorf("dataset for %s carries no SOP Instance UID", item.OriginalFilename)
		}
		if err := p.store.EnsureInstance(ctx, sopUID, study.StudyID); err != nil {
			return fmt.Errorf("recording instance %s: %w", sopUID, err)
		}

		if err := p.store.UpdateUploadStatus(ctx, uploadID, StatusCompleted); err != nil {
			return fmt.Errorf("marking upload %s completed: %w", uploadID, err)
		}
	}

	// The session correlation id is attached last: its presence is what lets
	// the status query report the batch as COMPLETED.
	if err := p.store.AttachSession(ctx, study.StudyID, msg.SessionID); err != nil {
		return fmt.Errorf("attaching session %s to study: %w", msg.SessionID, err)
	}

	if !p.archive.WaitForStudy(ctx, archiveStudyID) {
		log.WithField("archive_study_id", archiveStudyID).
			Warn("archive did not confirm study in time; session completed anyway")
	} else {
		log.WithField("archive_study_id", archiveStudyID).Info("archive confirmed study")
	}

	return nil
}

func (p *Processor) markAllFailed(ctx context.Context, msg models.UploadSessionMessage, log *logrus.Entry) {
	ids := make([]uuid.UUID, 0, len(msg.Uploads))
	for _, item := range msg.Uploads {
		if id, err := uuid.Parse(item.UploadID); err == nil {
			ids = append(ids, id)
		}
	}
	if err := p.store.MarkUploadsFailed(ctx, ids); err != nil {
		log.WithError(err).Error("failed to mark batch uploads as failed")
	}
}
