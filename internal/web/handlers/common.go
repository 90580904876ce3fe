package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/embedding"
	"github.com/kozaktomas/face-recognizer/internal/extractor"
	"github.com/kozaktomas/face-recognizer/internal/identity"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// roundConfidence rounds a score for API responses.
func roundConfidence(v float64) float64 {
	p := math.Pow10(constants.ConfidenceDecimals)
	return math.Round(v*p) / p
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, extractor.ErrUndecodableImage),
		errors.Is(err, extractor.ErrNoFaceDetected),
		errors.Is(err, identity.ErrInvalidLabel),
		errors.Is(err, embedding.ErrDimensionMismatch),
		errors.Is(err, embedding.ErrInvalidVector),
		errors.Is(err, embedding.ErrNotNormalized):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseUpload parses a multipart request bounded by MaxUploadSize.
func parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return fmt.Errorf("failed to parse multipart form: %w", err)
	}
	return nil
}

// readFileHeader reads an uploaded file fully into memory.
func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %s", fh.Filename)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// readFormFile reads the single file uploaded under field.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, fmt.Errorf("%s file is required", field)
	}
	return readFileHeader(r.MultipartForm.File[field][0])
}

// nameParam returns the decoded {name} URL parameter. chi matches against
// RawPath when the request has one and against the already decoded Path
// otherwise, so only the RawPath case still needs unescaping.
func nameParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return raw
	}
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}
