package facematch

import (
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accepted(label string, score float64) matcher.Result {
	return matcher.Result{Label: label, Matched: true, Score: score, Metric: matcher.Cosine}
}

func rejected(score float64) matcher.Result {
	return matcher.Result{Score: score, Metric: matcher.Cosine}
}

func TestResolve_NoFaces(t *testing.T) {
	d := Resolve(nil)
	assert.Equal(t, StatusNoFaceDetected, d.Status)
	assert.Equal(t, NotFoundName, d.Name)
	assert.Equal(t, 0.0, d.Confidence)
	assert.Empty(t, d.Faces)
	assert.False(t, d.Recognized())
}

func TestResolve_SingleFace(t *testing.T) {
	d := Resolve([]FaceMatch{{Region: BBox{1, 2, 3, 4}, Result: accepted("Alice", 0.91)}})
	assert.Equal(t, StatusRecognized, d.Status)
	assert.Equal(t, "Alice", d.Name)
	assert.Equal(t, 0.91, d.Confidence)
	require.Len(t, d.Faces, 1)
	assert.Equal(t, FaceResult{Index: 0, Name: "Alice", Confidence: 0.91, Recognized: true, Region: BBox{1, 2, 3, 4}}, d.Faces[0])
}

func TestResolve_SingleFaceRejectedKeepsScore(t *testing.T) {
	d := Resolve([]FaceMatch{{Result: rejected(0.21)}})
	assert.Equal(t, StatusNotInDatabase, d.Status)
	assert.Equal(t, NotFoundName, d.Name)
	assert.Equal(t, 0.21, d.Confidence)
	require.Len(t, d.Faces, 1)
	assert.Equal(t, UnknownLabel, d.Faces[0].Name)
	assert.False(t, d.Faces[0].Recognized)
}

func TestResolve_ThreeFacesOnlySecondIsCarol(t *testing.T) {
	d := Resolve([]FaceMatch{
		{Region: BBox{0, 0, 10, 10}, Result: rejected(0.12)},
		{Region: BBox{20, 0, 30, 10}, Result: accepted("Carol", 0.77)},
		{Region: BBox{40, 0, 50, 10}, Result: rejected(0.30)},
	})

	assert.Equal(t, StatusRecognized, d.Status)
	assert.Equal(t, "Carol", d.Name)
	assert.Equal(t, 0.77, d.Confidence)
	require.Len(t, d.Faces, 3)
	assert.False(t, d.Faces[0].Recognized)
	assert.Equal(t, UnknownLabel, d.Faces[0].Name)
	assert.True(t, d.Faces[1].Recognized)
	assert.False(t, d.Faces[2].Recognized)
	assert.Equal(t, UnknownLabel, d.Faces[2].Name)
	assert.Equal(t, 0.30, d.Faces[2].Confidence)
	assert.Equal(t, 2, d.Faces[2].Index)
}

func TestResolve_FirstAcceptedWinsOverHigherScore(t *testing.T) {
	d := Resolve([]FaceMatch{
		{Result: accepted("Dave", 0.40)},
		{Result: accepted("Erin", 0.95)},
	})
	assert.Equal(t, "Dave", d.Name)
	assert.Equal(t, 0.40, d.Confidence)
	assert.Len(t, d.Faces, 2)
}

func TestResolve_MultipleFacesNoneAccepted(t *testing.T) {
	d := Resolve([]FaceMatch{
		{Result: rejected(0.30)},
		{Result: rejected(0.33)},
	})
	assert.Equal(t, StatusNotInDatabase, d.Status)
	assert.Equal(t, NotFoundName, d.Name)
	assert.Equal(t, 0.0, d.Confidence)
	assert.Len(t, d.Faces, 2)
	assert.Equal(t, 0.33, d.Faces[1].Confidence)
}
