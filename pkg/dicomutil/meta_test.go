package dicomutil

import (
	"strings"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func datasetWith(t *testing.T, values map[tag.Tag][]string) dicom.Dataset {
	t.Helper()
	var ds dicom.Dataset
	for tg, v := range values {
		el, err := dicom.NewElement(tg, v)
		if err != nil {
			t.Fatalf("failed to build element %v: %v", tg, err)
		}
		ds.Elements = append(ds.Elements, el)
	}
	return ds
}

func TestNewUID(t *testing.T) {
	a := NewUID()
	b := NewUID()
	if !strings.HasPrefix(a, "2.25.") {
		t.Fatalf("expected a 2.25-rooted UID, got %s", a)
	}
	if a == b {
		t.Fatal("expected consecutive UIDs to differ")
	}
	if len(a) > 64 {
		t.Fatalf("UID exceeds the 64-character limit: %s", a)
	}
}

func TestStudyDateTimeDefaults(t *testing.T) {
	var ds dicom.Dataset
	date, clock := StudyDateTime(&ds)
	if date.Format("20060102") != "19000101" {
		t.Fatalf("expected placeholder study date, got %s", date.Format("20060102"))
	}
	if clock.Format("150405") != "000000" {
		t.Fatalf("expected placeholder study time, got %s", clock.Format("150405"))
	}
}

func TestStudyDateTimeStripsFractionalSeconds(t *testing.T) {
	ds := datasetWith(t, map[tag.Tag][]string{
		tag.StudyDate: {"20240131"},
		tag.StudyTime: {"101530.250000"},
	})
	date, clock := StudyDateTime(&ds)
	if date.Format("20060102") != "20240131" {
		t.Fatalf("expected 20240131, got %s", date.Format("20060102"))
	}
	if clock.Format("150405") != "101530" {
		t.Fatalf("expected 101530, got %s", clock.Format("150405"))
	}
}

func TestStudyDateTimeMalformedFallsBack(t *testing.T) {
	ds := datasetWith(t, map[tag.Tag][]string{
		tag.StudyDate: {"not-a-date"},
	})
	date, _ := StudyDateTime(&ds)
	if date.Format("20060102") != "19000101" {
		t.Fatalf("expected placeholder for malformed date, got %s", date.Format("20060102"))
	}
}

func TestStudyDescription(t *testing.T) {
	var empty dicom.Dataset
	if got := StudyDescription(&empty); got != DefaultStudyDescription {
		t.Fatalf("expected %q for a sparse dataset, got %q", DefaultStudyDescription, got)
	}

	ds := datasetWith(t, map[tag.Tag][]string{
		tag.StudyDescription: {"Brain MRI "},
	})
	if got := StudyDescription(&ds); got != "Brain MRI" {
		t.Fatalf("expected trailing padding trimmed, got %q", got)
	}
}

func TestReadMetaRejectsGarbage(t *testing.T) {
	if _, err := ReadMeta([]byte("garbage bytes")); err == nil {
		t.Fatal("expected an error for non-DICOM input")
	}
}
