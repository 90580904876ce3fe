package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/facematch"
)

func TestPersonsHandler_Add_Success(t *testing.T) {
	svc, ext, backend := testService(t)
	enroll(t, svc, "Bob", 0, 1)
	ext.face("alice-1", facematch.BBox{}, 1, 0)

	handler := NewPersonsHandler(svc, nopLogger)
	req := multipartRequest(t, "POST", "/api/v1/persons", map[string]string{"name": "Alice"},
		[][2]string{{"image", "alice-1"}})
	recorder := httptest.NewRecorder()

	handler.Add(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result AddPersonResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.PersonName != "Alice" {
		t.Errorf("unexpected response %+v", result)
	}
	if result.EmbeddingsCount != 1 || result.TotalPeople != 2 || result.TotalEmbeddings != 2 {
		t.Errorf("unexpected counts %+v", result)
	}
	if result.Message != "Successfully added Alice to the database" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if backend.SaveCount() != 2 {
		t.Errorf("expected the store to be saved, got %d saves", backend.SaveCount())
	}
}

func TestPersonsHandler_Add_NoFace(t *testing.T) {
	svc, _, backend := testService(t)
	handler := NewPersonsHandler(svc, nopLogger)
	req := multipartRequest(t, "POST", "/add-person", map[string]string{"name": "Alice"},
		[][2]string{{"image", "empty room"}})
	recorder := httptest.NewRecorder()

	handler.Add(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["success"] != false || result["embeddings_count"] != float64(0) {
		t.Errorf("unexpected response %v", result)
	}
	if backend.SaveCount() != 0 {
		t.Error("nothing should be saved")
	}
}

func TestPersonsHandler_Add_Validation(t *testing.T) {
	svc, _, _ := testService(t)
	handler := NewPersonsHandler(svc, nopLogger)

	tests := []struct {
		name    string
		fields  map[string]string
		files   [][2]string
		message string
	}{
		{"missing name", nil, [][2]string{{"image", "x"}}, "name is required"},
		{"blank name", map[string]string{"name": "  "}, [][2]string{{"image", "x"}}, "name is required"},
		{"missing image", map[string]string{"name": "Alice"}, nil, "image file is required"},
		{"undecodable", map[string]string{"name": "Alice"}, [][2]string{{"image", "bad"}}, "Could not decode image. Please upload a valid image file."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := multipartRequest(t, "POST", "/api/v1/persons", tc.fields, tc.files)
			recorder := httptest.NewRecorder()
			handler.Add(recorder, req)
			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.message)
		})
	}
}

func TestPersonsHandler_Add_SaveFailure(t *testing.T) {
	svc, ext, backend := testService(t)
	ext.face("alice", facematch.BBox{}, 1, 0)
	backend.SetSaveError(errors.New("read-only file system"))

	handler := NewPersonsHandler(svc, nopLogger)
	req := multipartRequest(t, "POST", "/api/v1/persons", map[string]string{"name": "Alice"},
		[][2]string{{"image", "alice"}})
	recorder := httptest.NewRecorder()

	handler.Add(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestPersonsHandler_AddMultiple_PartialSuccess(t *testing.T) {
	svc, ext, backend := testService(t)
	ext.face("dana-1", facematch.BBox{}, 1, 0.1)
	ext.face("dana-3", facematch.BBox{}, 1, 0.2)

	handler := NewPersonsHandler(svc, nopLogger)
	req := multipartRequest(t, "POST", "/api/v1/persons/batch", map[string]string{"name": "Dana"},
		[][2]string{{"images", "dana-1"}, {"images", "nobody"}, {"images", "dana-3"}})
	recorder := httptest.NewRecorder()

	handler.AddMultiple(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result AddPersonMultipleResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.EmbeddingsAdded != 2 || result.ImagesProcessed != 2 || result.FailedImages != 1 {
		t.Errorf("unexpected counts %+v", result)
	}
	if len(result.FailedReasons) != 1 || result.FailedReasons[0] != "Image 2: No face detected" {
		t.Errorf("unexpected failed reasons %v", result.FailedReasons)
	}
	if result.Message != "Processed 2/3 images successfully" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.TotalEmbeddingsForPerson != 2 || result.BatchID == "" {
		t.Errorf("unexpected response %+v", result)
	}
	if backend.SaveCount() != 1 {
		t.Errorf("expected exactly one save, got %d", backend.SaveCount())
	}
}

func TestPersonsHandler_AddMultiple_NothingAdded(t *testing.T) {
	svc, _, backend := testService(t)
	handler := NewPersonsHandler(svc, nopLogger)
	req := multipartRequest(t, "POST", "/add-person-multiple", map[string]string{"name": "Eve"},
		[][2]string{{"images", "bad one"}, {"images", "nobody"}})
	recorder := httptest.NewRecorder()

	handler.AddMultiple(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	var result AddPersonMultipleResponse
	parseJSONResponse(t, recorder, &result)
	if result.Success || result.FailedImages != 2 {
		t.Errorf("unexpected response %+v", result)
	}
	if result.FailedReasons[0] != "Image 1: Could not decode image" {
		t.Errorf("unexpected reason %q", result.FailedReasons[0])
	}
	if !strings.HasPrefix(result.Message, "Failed to process any images") {
		t.Errorf("unexpected message %q", result.Message)
	}
	if backend.SaveCount() != 0 {
		t.Error("nothing should be saved")
	}
}

func TestPersonsHandler_AddMultiple_NoImages(t *testing.T) {
	svc, _, _ := testService(t)
	handler := NewPersonsHandler(svc, nopLogger)
	req := multipartRequest(t, "POST", "/api/v1/persons/batch", map[string]string{"name": "Eve"}, nil)
	recorder := httptest.NewRecorder()

	handler.AddMultiple(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "at least one image is required")
}

func TestPersonsHandler_Delete(t *testing.T) {
	svc, _, _ := testService(t)
	enroll(t, svc, "Frank Ocean", 1, 0)
	enroll(t, svc, "Frank Ocean", 0.8, 0.6)
	handler := NewPersonsHandler(svc, nopLogger)

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/persons/Frank%20Ocean", nil),
		map[string]string{"name": "Frank Ocean"})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result DeletePersonResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.EmbeddingsRemoved != 2 {
		t.Errorf("unexpected response %+v", result)
	}

	// Second delete reports not found.
	req = requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/persons/Frank%20Ocean", nil),
		map[string]string{"name": "Frank Ocean"})
	recorder = httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	parseJSONResponse(t, recorder, &result)
	if result.Success || result.Message != "Person 'Frank Ocean' not found in database" {
		t.Errorf("unexpected response %+v", result)
	}
}

func TestPersonsHandler_Average(t *testing.T) {
	svc, _, _ := testService(t)
	enroll(t, svc, "Gina", 1, 0)
	enroll(t, svc, "Gina", 0, 1)
	handler := NewPersonsHandler(svc, nopLogger)

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/persons/Gina/average", nil),
		map[string]string{"name": "Gina"})
	recorder := httptest.NewRecorder()
	handler.Average(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result AverageResponse
	parseJSONResponse(t, recorder, &result)
	if result.Dimension != 2 || len(result.Embedding) != 2 {
		t.Fatalf("unexpected response %+v", result)
	}
	if d := result.Embedding[0] - result.Embedding[1]; d > 1e-12 || d < -1e-12 {
		t.Errorf("expected equal components, got %v", result.Embedding)
	}

	req = requestWithChiParams(httptest.NewRequest("GET", "/api/v1/persons/Hank/average", nil),
		map[string]string{"name": "Hank"})
	recorder = httptest.NewRecorder()
	handler.Average(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestPersonsHandler_Add_KeepsLabelVerbatim(t *testing.T) {
	svc, ext, _ := testService(t)
	enroll(t, svc, "Alice", 1, 0)
	ext.face("alice-2", facematch.BBox{}, 1, 0)

	handler := NewPersonsHandler(svc, nopLogger)
	req := multipartRequest(t, "POST", "/api/v1/persons", map[string]string{"name": "Alice "},
		[][2]string{{"image", "alice-2"}})
	recorder := httptest.NewRecorder()

	handler.Add(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result AddPersonResponse
	parseJSONResponse(t, recorder, &result)
	if result.PersonName != "Alice " || result.TotalPeople != 2 {
		t.Errorf("expected a separate identity for the padded label, got %+v", result)
	}
}
