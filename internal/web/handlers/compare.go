package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"go.uber.org/zap"
)

// CompareHandler compares the faces of two images.
type CompareHandler struct {
	service *recognition.Service
	logger  *zap.Logger
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(svc *recognition.Service, logger *zap.Logger) *CompareHandler {
	return &CompareHandler{service: svc, logger: logger}
}

// CompareResponse holds both metrics and the verdict.
type CompareResponse struct {
	CosineSimilarity  float64 `json:"cosine_similarity"`
	EuclideanDistance float64 `json:"euclidean_distance"`
	Verdict           string  `json:"verdict"`
}

// Compare handles POST /compare with multipart "image_a" and "image_b".
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := readFormFile(r, "image_a")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := readFormFile(r, "image_b")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.service.Compare(r.Context(), a, b)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("compare failed", zap.Error(err))
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, CompareResponse{
		CosineSimilarity:  roundConfidence(c.Cosine),
		EuclideanDistance: roundConfidence(c.Euclidean),
		Verdict:           string(c.Verdict),
	})
}
