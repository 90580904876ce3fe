package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/extractor"
	"github.com/kozaktomas/face-recognizer/internal/identity"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"go.uber.org/zap"
)

// PersonsHandler handles enrollment and deletion.
type PersonsHandler struct {
	service *recognition.Service
	logger  *zap.Logger
}

// NewPersonsHandler creates a new persons handler.
func NewPersonsHandler(svc *recognition.Service, logger *zap.Logger) *PersonsHandler {
	return &PersonsHandler{service: svc, logger: logger}
}

// AddPersonResponse is returned by single-image enrollment.
type AddPersonResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	PersonName      string `json:"person_name"`
	EmbeddingsCount int    `json:"embeddings_count"`
	TotalPeople     int    `json:"total_people,omitempty"`
	TotalEmbeddings int    `json:"total_embeddings,omitempty"`
}

// AddPersonMultipleResponse is returned by batch enrollment.
type AddPersonMultipleResponse struct {
	Success                  bool     `json:"success"`
	Message                  string   `json:"message"`
	BatchID                  string   `json:"batch_id"`
	PersonName               string   `json:"person_name"`
	EmbeddingsAdded          int      `json:"embeddings_added"`
	ImagesProcessed          int      `json:"images_processed"`
	FailedImages             int      `json:"failed_images"`
	FailedReasons            []string `json:"failed_reasons,omitempty"`
	TotalEmbeddingsForPerson int      `json:"total_embeddings_for_person"`
	TotalPeople              int      `json:"total_people"`
	TotalEmbeddings          int      `json:"total_embeddings"`
}

// DeletePersonResponse is returned by deletion.
type DeletePersonResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	EmbeddingsRemoved int    `json:"embeddings_removed,omitempty"`
}

// AverageResponse carries an identity's mean embedding.
type AverageResponse struct {
	PersonName string    `json:"person_name"`
	Dimension  int       `json:"dimension"`
	Embedding  []float64 `json:"embedding"`
}

// formName returns the label exactly as sent, or "" when it is blank.
// Whitespace variants stay distinct identities.
func formName(r *http.Request) string {
	name := r.FormValue("name")
	if strings.TrimSpace(name) == "" {
		return ""
	}
	return name
}

// Add handles POST /persons with multipart "name" and "image".
func (h *PersonsHandler) Add(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := formName(r)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	image, err := readFormFile(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := h.service.EnrollImage(r.Context(), name, image)
	switch {
	case errors.Is(err, extractor.ErrNoFaceDetected):
		respondJSON(w, http.StatusBadRequest, AddPersonResponse{
			Message:    "No face detected in the image. Please upload a clear face image.",
			PersonName: name,
		})
		return
	case errors.Is(err, extractor.ErrUndecodableImage):
		respondError(w, http.StatusBadRequest, "Could not decode image. Please upload a valid image file.")
		return
	case err != nil:
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("enrollment failed", zap.String("name", sanitizeForLog(name)), zap.Error(err))
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, AddPersonResponse{
		Success:         true,
		Message:         fmt.Sprintf("Successfully added %s to the database", name),
		PersonName:      name,
		EmbeddingsCount: counts.PersonEmbeddings,
		TotalPeople:     counts.TotalPeople,
		TotalEmbeddings: counts.TotalEmbeddings,
	})
}

// AddMultiple handles POST /persons/batch with multipart "name" and one or
// more "images".
func (h *PersonsHandler) AddMultiple(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := formName(r)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "at least one image is required")
		return
	}
	if len(files) > constants.MaxBatchImages {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d images per batch", constants.MaxBatchImages))
		return
	}

	images := make([][]byte, len(files))
	for i, fh := range files {
		data, err := readFileHeader(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		images[i] = data
	}

	res, err := h.service.AddPersonMultiple(r.Context(), name, images)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("batch enrollment failed",
				zap.String("batch_id", res.BatchID),
				zap.String("name", sanitizeForLog(name)),
				zap.Error(err),
			)
		}
		respondError(w, status, err.Error())
		return
	}

	resp := AddPersonMultipleResponse{
		Success:                  res.Added > 0,
		Message:                  fmt.Sprintf("Processed %d/%d images successfully", res.Added, res.Images),
		BatchID:                  res.BatchID,
		PersonName:               name,
		EmbeddingsAdded:          res.Added,
		ImagesProcessed:          res.Added,
		FailedImages:             res.Failed,
		TotalEmbeddingsForPerson: res.Counts.PersonEmbeddings,
		TotalPeople:              res.Counts.TotalPeople,
		TotalEmbeddings:          res.Counts.TotalEmbeddings,
	}
	for _, f := range res.Failures {
		resp.FailedReasons = append(resp.FailedReasons, fmt.Sprintf("Image %d: %s", f.Index, f.Reason))
	}

	if res.Added == 0 {
		resp.Message = "Failed to process any images. No faces were detected."
		respondJSON(w, http.StatusBadRequest, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /persons/{name}.
func (h *PersonsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := nameParam(r)

	removed, err := h.service.DeletePerson(r.Context(), name)
	if errors.Is(err, identity.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, DeletePersonResponse{
			Message: fmt.Sprintf("Person '%s' not found in database", name),
		})
		return
	}
	if err != nil {
		h.logger.Error("delete failed", zap.String("name", sanitizeForLog(name)), zap.Error(err))
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, DeletePersonResponse{
		Success:           true,
		Message:           fmt.Sprintf("Successfully deleted %s from database", name),
		EmbeddingsRemoved: removed,
	})
}

// Average handles GET /persons/{name}/average.
func (h *PersonsHandler) Average(w http.ResponseWriter, r *http.Request) {
	name := nameParam(r)

	avg, err := h.service.GetAverageEmbedding(name)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, AverageResponse{
		PersonName: name,
		Dimension:  avg.Dim(),
		Embedding:  avg,
	})
}
