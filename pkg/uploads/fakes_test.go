package uploads

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mapdr-ai/platform/pkg/common/models"
	"github.com/mapdr-ai/platform/pkg/pacs"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// eventLog records the order of registry and archive operations.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) record(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, event)
	l.mu.Unlock()
}

type fakeStore struct {
	mu        sync.Mutex
	patients  map[uuid.UUID]*Patient
	uploads   map[uuid.UUID]*FileUpload
	studies   map[uuid.UUID]*DICOMStudy
	instances map[string]uuid.UUID
	log       *eventLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		patients:  make(map[uuid.UUID]*Patient),
		uploads:   make(map[uuid.UUID]*FileUpload),
		studies:   make(map[uuid.UUID]*DICOMStudy),
		instances: make(map[string]uuid.UUID),
	}
}

func (s *fakeStore) addPatient(name string) *Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Patient{
		PatientID:   uuid.New(),
		FullName:    name,
		DateOfBirth: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	s.patients[p.PatientID] = p
	return p
}

func (s *fakeStore) addUpload(patientID uuid.UUID, name string) *FileUpload {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &FileUpload{
		UploadID:         uuid.New(),
		PatientID:        patientID,
		OriginalFilename: name,
		Status:           StatusPending,
	}
	s.uploads[u.UploadID] = u
	return u
}

func (s *fakeStore) CreatePatient(ctx context.Context, patient *Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patient.PatientID == uuid.Nil {
		patient.PatientID = uuid.New()
	}
	s.patients[patient.PatientID] = patient
	return nil
}

func (s *fakeStore) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (s *fakeStore) CreateUpload(ctx context.Context, upload *FileUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upload.UploadID == uuid.Nil {
		upload.UploadID = uuid.New()
	}
	if upload.Status == "" {
		upload.Status = StatusPending
	}
	s.uploads[upload.UploadID] = upload
	return nil
}

func (s *fakeStore) GetUpload(ctx context.Context, id uuid.UUID) (*FileUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok {
		return nil, ErrUploadNotFound
	}
	return u, nil
}

func (s *fakeStore) UpdateUploadStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok {
		return ErrUploadNotFound
	}
	u.Status = status
	return nil
}

func (s *fakeStore) MarkUploadsFailed(ctx context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if u, ok := s.uploads[id]; ok {
			u.Status = StatusFailed
		}
	}
	return nil
}

func (s *fakeStore) UpsertStudy(ctx context.Context, studyInstanceUID string, fields StudyFields) (*DICOMStudy, error) {
	s.log.record("upsert")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, study := range s.studies {
		if study.StudyInstanceUID != nil && *study.StudyInstanceUID == studyInstanceUID {
			study.PatientID = fields.PatientID
			study.ArchiveStudyID = fields.ArchiveStudyID
			study.StudyDescription = fields.Description
			return study, nil
		}
	}
	uid := studyInstanceUID
	study := &DICOMStudy{
		StudyID:          uuid.New(),
		PatientID:        fields.PatientID,
		UserID:           fields.UserID,
		StudyInstanceUID: &uid,
		ArchiveStudyID:   fields.ArchiveStudyID,
		StudyDescription: fields.Description,
		StudyDate:        fields.StudyDate,
		StudyTime:        fields.StudyTime,
	}
	s.studies[study.StudyID] = study
	return study, nil
}

func (s *fakeStore) AttachSession(ctx context.Context, studyID uuid.UUID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	study, ok := s.studies[studyID]
	if !ok {
		return ErrStudyNotFound
	}
	study.SessionID = &sessionID
	return nil
}

func (s *fakeStore) FindStudyByInstanceUID(ctx context.Context, studyInstanceUID string) (*DICOMStudy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, study := range s.studies {
		if study.StudyInstanceUID != nil && *study.StudyInstanceUID == studyInstanceUID {
			return study, nil
		}
	}
	return nil, ErrStudyNotFound
}

func (s *fakeStore) FindStudyBySession(ctx context.Context, sessionID string) (*DICOMStudy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, study := range s.studies {
		if study.SessionID != nil && *study.SessionID == sessionID {
			return study, nil
		}
	}
	return nil, ErrStudyNotFound
}

func (s *fakeStore) EnsureInstance(ctx context.Context, instanceUID string, studyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[instanceUID]; !ok {
		s.instances[instanceUID] = studyID
	}
	return nil
}

func (s *fakeStore) InstanceExists(ctx context.Context, instanceUID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.instances[instanceUID]
	return ok, nil
}

func (s *fakeStore) GetInstance(ctx context.Context, instanceUID string) (*DICOMInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	studyID, ok := s.instances[instanceUID]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return &DICOMInstance{InstanceUID: instanceUID, StudyID: studyID}, nil
}

type fakeArchive struct {
	mu          sync.Mutex
	log         *eventLog
	submissions [][]byte
	failAt      int // 1-based submission index that fails; 0 never fails
	parentStudy string
	studyReady  bool
}

func (a *fakeArchive) Submit(ctx context.Context, dicomBytes []byte) (*pacs.SubmitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submissions = append(a.submissions, dicomBytes)
	if a.failAt > 0 && len(a.submissions) == a.failAt {
		return nil, fmt.Errorf("archive unavailable")
	}
	a.log.record("submit")
	return &pacs.SubmitResult{
		ID:          fmt.Sprintf("inst-%d", len(a.submissions)),
		ParentStudy: a.parentStudy,
		Status:      "Success",
	}, nil
}

func (a *fakeArchive) WaitForStudy(ctx context.Context, archiveStudyID string) bool {
	return a.studyReady
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []models.UploadSessionMessage
	err      error
}

func (p *fakePublisher) PublishSession(ctx context.Context, msg models.UploadSessionMessage) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	return nil
}
