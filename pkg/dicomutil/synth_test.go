package dicomutil

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = uint8((x + y) % 256)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestFromImageRoundTrip(t *testing.T) {
	studyUID := NewUID()
	seriesUID := NewUID()
	patient := PatientInfo{
		ID:          "3f1c9f8e-0000-0000-0000-000000000001",
		FullName:    "Doe Jane",
		DateOfBirth: time.Date(1984, 6, 2, 0, 0, 0, 0, time.UTC),
	}

	out, err := FromImage(testPNG(t, 100, 80), patient, studyUID, seriesUID, 1)
	if err != nil {
		t.Fatalf("failed to synthesize DICOM: %v", err)
	}

	ds, err := Read(out)
	if err != nil {
		t.Fatalf("synthesized object does not parse: %v", err)
	}

	rows, cols, ok := PixelDimensions(&ds)
	if !ok {
		t.Fatal("expected Rows and Columns tags")
	}
	if rows != 80 || cols != 100 {
		t.Fatalf("expected 80x100 pixel matrix, got %dx%d", rows, cols)
	}

	gotStudy, ok := StudyInstanceUID(&ds)
	if !ok || gotStudy != studyUID {
		t.Fatalf("expected study UID %s, got %q", studyUID, gotStudy)
	}
	sopUID, ok := SOPInstanceUID(&ds)
	if !ok {
		t.Fatal("expected a SOP Instance UID")
	}
	if !strings.HasPrefix(sopUID, "2.25.") {
		t.Fatalf("expected a 2.25-rooted SOP Instance UID, got %s", sopUID)
	}

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		t.Fatalf("no pixel data in synthesized object: %v", err)
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(info.Frames))
	}
	data := info.Frames[0].NativeData.Data
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			if got := data[y*100+x][0]; got != (x+y)%256 {
				t.Fatalf("pixel (%d,%d): expected %d, got %d", x, y, (x+y)%256, got)
			}
		}
	}
}

func TestFromImageStampsIdentity(t *testing.T) {
	patient := PatientInfo{
		ID:          "11111111-2222-3333-4444-555555555555",
		FullName:    "Smith John",
		DateOfBirth: time.Date(1950, 12, 24, 0, 0, 0, 0, time.UTC),
	}

	out, err := FromImage(testPNG(t, 16, 16), patient, NewUID(), NewUID(), 3)
	if err != nil {
		t.Fatalf("failed to synthesize DICOM: %v", err)
	}
	ds, err := ReadMeta(out)
	if err != nil {
		t.Fatalf("synthesized object does not parse: %v", err)
	}

	checks := map[tag.Tag]string{
		tag.PatientID:        patient.ID,
		tag.PatientName:      patient.FullName,
		tag.PatientBirthDate: "19501224",
		tag.PatientSex:       "O",
		tag.Modality:         "OT",
		tag.SOPClassUID:      SecondaryCaptureSOPClassUID,
		tag.InstanceNumber:   "3",
	}
	for tg, want := range checks {
		got, ok := stringValue(&ds, tg)
		if !ok || got != want {
			t.Errorf("tag %v: expected %q, got %q", tg, want, got)
		}
	}
}

func TestFromImageRejectsNonImage(t *testing.T) {
	_, err := FromImage([]byte("definitely not an image"), PatientInfo{}, NewUID(), NewUID(), 1)
	if err == nil {
		t.Fatal("expected an error for undecodable input")
	}
}
