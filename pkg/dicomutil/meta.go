package dicomutil

import (
	"bytes"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Placeholder values used when an optional tag is absent, so study upserts
// never fail on sparse datasets.
const (
	DefaultStudyDescription = "N/A"
	defaultStudyDate        = "19000101"
	defaultStudyTime        = "000000"
)

// NewUID generates a globally-unique DICOM UID in the 2.25 (UUID-derived)
// root, the standard way to mint UIDs without a registered org root.
func NewUID() string {
	u := uuid.New()
	var n big.Int
	n.SetBytes(u[:])
	return "2.25." + n.String()
}

// ReadMeta parses DICOM bytes skipping pixel data, for fast identity reads.
// A non-nil error means the bytes are not a valid DICOM object.
func ReadMeta(b []byte) (dicom.Dataset, error) {
	return dicom.Parse(bytes.NewReader(b), int64(len(b)), nil, dicom.SkipPixelData())
}

// Read parses a complete DICOM object including pixel data.
func Read(b []byte) (dicom.Dataset, error) {
	return dicom.Parse(bytes.NewReader(b), int64(len(b)), nil)
}

func stringValue(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	values, ok := el.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return "", false
	}
	v := strings.TrimRight(values[0], " \x00")
	if v == "" {
		return "", false
	}
	return v, true
}

func StudyInstanceUID(ds *dicom.Dataset) (string, bool) {
	return stringValue(ds, tag.StudyInstanceUID)
}

func SOPInstanceUID(ds *dicom.Dataset) (string, bool) {
	return stringValue(ds, tag.SOPInstanceUID)
}

func StudyDescription(ds *dicom.Dataset) string {
	if v, ok := stringValue(ds, tag.StudyDescription); ok {
		return v
	}
	return DefaultStudyDescription
}

// StudyDateTime extracts StudyDate and StudyTime, substituting epoch-like
// placeholders for missing or malformed tags. Fractional seconds on
// StudyTime are dropped.
func StudyDateTime(ds *dicom.Dataset) (time.Time, time.Time) {
	rawDate, ok := stringValue(ds, tag.StudyDate)
	if !ok {
		rawDate = defaultStudyDate
	}
	date, err := time.Parse("20060102", rawDate)
	if err != nil {
		date, _ = time.Parse("20060102", defaultStudyDate)
	}

	rawTime, ok := stringValue(ds, tag.StudyTime)
	if !ok {
		rawTime = defaultStudyTime
	}
	rawTime = strings.SplitN(rawTime, ".", 2)[0]
	clock, err := time.Parse("150405", rawTime)
	if err != nil {
		clock, _ = time.Parse("150405", defaultStudyTime)
	}

	return date, clock
}

// PixelDimensions reports Rows and Columns from an already-parsed dataset.
func PixelDimensions(ds *dicom.Dataset) (rows, cols int, ok bool) {
	rowEl, err := ds.FindElementByTag(tag.Rows)
	if err != nil {
		return 0, 0, false
	}
	colEl, err := ds.FindElementByTag(tag.Columns)
	if err != nil {
		return 0, 0, false
	}
	rowVals, rok := rowEl.Value.GetValue().([]int)
	colVals, cok := colEl.Value.GetValue().([]int)
	if !rok || !cok || len(rowVals) == 0 || len(colVals) == 0 {
		return 0, 0, false
	}
	return rowVals[0], colVals[0], true
}
