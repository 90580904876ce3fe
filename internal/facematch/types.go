// Package facematch turns the per-face search results for one image into a
// single identification decision.
package facematch

import (
	"github.com/kozaktomas/face-recognizer/internal/embedding"
	"github.com/kozaktomas/face-recognizer/internal/matcher"
)

// Status is the overall outcome of identifying an image
type Status string

const (
	StatusNoFaceDetected Status = "no_face_detected" // Extractor found no face
	StatusRecognized     Status = "recognized"       // A face matched a stored identity
	StatusNotInDatabase  Status = "not_in_database"  // Faces were found, none matched
)

const (
	// NotFoundName is reported as the decision name when nobody was recognized.
	NotFoundName = "Person Not Found"
	// UnknownLabel is reported for an individual face that was not recognized.
	UnknownLabel = "Unknown"
)

// Detection is one face found by the extractor, in detection order.
type Detection struct {
	Embedding embedding.Vector
	Region    BBox
	DetScore  float64
}

// FaceMatch pairs a detected face region with its search result.
type FaceMatch struct {
	Region BBox
	Result matcher.Result
}

// FaceResult is the per-face detail of a Decision.
type FaceResult struct {
	Index      int
	Name       string // matched label or UnknownLabel
	Confidence float64
	Recognized bool
	Region     BBox
}

// Decision is the resolved outcome for one image. Faces always carries every
// detected face, whatever the summarized Name says.
type Decision struct {
	Name       string
	Confidence float64
	Status     Status
	Faces      []FaceResult
}

// Recognized reports whether the decision names a stored identity.
func (d Decision) Recognized() bool {
	return d.Status == StatusRecognized
}
