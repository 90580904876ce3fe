package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-recognizer/internal/database/mock"
	"github.com/kozaktomas/face-recognizer/internal/embedding"
	"github.com/kozaktomas/face-recognizer/internal/extractor"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/identity"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"go.uber.org/zap"
)

// fakeExtractor returns canned faces keyed by the uploaded bytes. Content
// starting with "bad" is undecodable.
type fakeExtractor struct {
	faces map[string][]facematch.Detection
}

func (f *fakeExtractor) ExtractAll(ctx context.Context, image []byte) ([]facematch.Detection, error) {
	if bytes.HasPrefix(image, []byte("bad")) {
		return nil, extractor.ErrUndecodableImage
	}
	return f.faces[string(image)], nil
}

func (f *fakeExtractor) ExtractSingle(ctx context.Context, image []byte) (embedding.Vector, error) {
	dets, err := f.ExtractAll(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(dets) == 0 {
		return nil, extractor.ErrNoFaceDetected
	}
	return dets[0].Embedding, nil
}

// face registers a detection for image content key.
func (f *fakeExtractor) face(key string, region facematch.BBox, v ...float64) {
	unit, err := embedding.Vector(v).Normalized()
	if err != nil {
		panic(err)
	}
	f.faces[key] = append(f.faces[key], facematch.Detection{Embedding: unit, Region: region, DetScore: 0.9})
}

// testService creates a recognition service over an empty in-memory store
func testService(t *testing.T) (*recognition.Service, *fakeExtractor, *mock.MockSnapshotStore) {
	t.Helper()
	backend := mock.NewMockSnapshotStore()
	store, err := identity.Open(context.Background(), backend)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ext := &fakeExtractor{faces: map[string][]facematch.Detection{}}
	threshold := 0.8
	svc, err := recognition.NewService(ext, store, recognition.Options{Threshold: &threshold})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, ext, backend
}

// enroll adds one embedding directly through the service
func enroll(t *testing.T, svc *recognition.Service, name string, v ...float64) {
	t.Helper()
	if _, err := svc.AddPerson(context.Background(), name, embedding.Vector(v)); err != nil {
		t.Fatalf("failed to enroll %s: %v", name, err)
	}
}

// multipartRequest builds a multipart request with form fields and files.
// Each file entry is (field, content).
func multipartRequest(t *testing.T, method, path string, fields map[string]string, files [][2]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for i, f := range files {
		part, err := mw.CreateFormFile(f[0], "image"+string(rune('a'+i))+".jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(f[1]))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

var nopLogger = zap.NewNop()
