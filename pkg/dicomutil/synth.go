package dicomutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SecondaryCaptureSOPClassUID identifies synthesized objects: plain photos
// converted to DICOM have no acquisition modality of their own.
const SecondaryCaptureSOPClassUID = "1.2.840.10008.5.1.4.1.1.7"

// ExplicitVRLittleEndian is the transfer syntax every synthesized object is
// encoded with.
const ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

// PatientInfo carries the identity tags stamped onto a synthesized object.
type PatientInfo struct {
	ID          string
	FullName    string
	DateOfBirth time.Time
}

type datasetBuilder struct {
	elements []*dicom.Element
	err      error
}

func (b *datasetBuilder) add(t tag.Tag, value interface{}) {
	if b.err != nil {
		return
	}
	el, err := dicom.NewElement(t, value)
	if err != nil {
		b.err = fmt.Errorf("building element %v: %w", t, err)
		return
	}
	b.elements = append(b.elements, el)
}

// FromImage converts a non-DICOM raster image (JPEG or PNG bytes) into a
// standards-valid DICOM object carrying the given patient/study/series
// identity. The image is flattened to single-channel 8-bit grayscale and the
// raw pixel bytes are embedded verbatim. instanceNumber is 1-based.
//
// Any decode or encode error is returned as-is; the caller treats it as a
// failure of the whole batch item.
func FromImage(imageBytes []byte, patient PatientInfo, studyUID, seriesUID string, instanceNumber int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("decoding source image: %w", err)
	}

	gray := toGray(img)
	rows := gray.Bounds().Dy()
	cols := gray.Bounds().Dx()

	pixels := make([][]int, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			pixels[y*cols+x] = []int{int(gray.GrayAt(gray.Bounds().Min.X+x, gray.Bounds().Min.Y+y).Y)}
		}
	}

	sopInstanceUID := NewUID()
	now := time.Now()
	date := now.Format("20060102")
	clock := now.Format("150405")

	b := &datasetBuilder{}

	// File meta information
	b.add(tag.FileMetaInformationVersion, []byte{0x00, 0x01})
	b.add(tag.MediaStorageSOPClassUID, []string{SecondaryCaptureSOPClassUID})
	b.add(tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID})
	b.add(tag.TransferSyntaxUID, []string{ExplicitVRLittleEndian})
	b.add(tag.ImplementationClassUID, []string{NewUID()})

	// Identity
	b.add(tag.SOPClassUID, []string{SecondaryCaptureSOPClassUID})
	b.add(tag.SOPInstanceUID, []string{sopInstanceUID})
	b.add(tag.PatientName, []string{patient.FullName})
	b.add(tag.PatientID, []string{patient.ID})
	b.add(tag.PatientBirthDate, []string{patient.DateOfBirth.Format("20060102")})
	b.add(tag.PatientSex, []string{"O"}) // source images carry no sex attribute

	// Study
	b.add(tag.StudyInstanceUID, []string{studyUID})
	b.add(tag.StudyDate, []string{date})
	b.add(tag.StudyTime, []string{clock})
	b.add(tag.AccessionNumber, []string{""})
	b.add(tag.StudyID, []string{"1"})
	b.add(tag.StudyDescription, []string{"Image converted from JPG/PNG"})

	// Series
	b.add(tag.SeriesInstanceUID, []string{seriesUID})
	b.add(tag.Modality, []string{"OT"})
	b.add(tag.SeriesNumber, []string{"1"})
	b.add(tag.SeriesDate, []string{date})
	b.add(tag.SeriesTime, []string{clock})

	// Instance
	b.add(tag.InstanceNumber, []string{fmt.Sprintf("%d", instanceNumber)})
	b.add(tag.ContentDate, []string{date})
	b.add(tag.ContentTime, []string{clock})

	// Pixel description
	b.add(tag.PhotometricInterpretation, []string{"MONOCHROME2"})
	b.add(tag.SamplesPerPixel, []int{1})
	b.add(tag.BitsAllocated, []int{8})
	b.add(tag.BitsStored, []int{8})
	b.add(tag.HighBit, []int{7})
	b.add(tag.PixelRepresentation, []int{0})
	b.add(tag.Rows, []int{rows})
	b.add(tag.Columns, []int{cols})

	b.add(tag.PixelData, dicom.PixelDataInfo{
		IsEncapsulated: false,
		Frames: []*frame.Frame{{
			Encapsulated: false,
			NativeData: frame.NativeFrame{
				BitsPerSample: 8,
				Rows:          rows,
				Cols:          cols,
				Data:          pixels,
			},
		}},
	})

	if b.err != nil {
		return nil, b.err
	}

	var buf bytes.Buffer
	ds := dicom.Dataset{Elements: b.elements}
	if err := dicom.Write(&buf, ds); err != nil {
		return nil, fmt.Errorf("encoding DICOM object: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}
