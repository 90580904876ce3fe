package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kozaktomas/face-recognizer/internal/embedding"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"go.uber.org/zap"
)

// IdentifyHandler handles recognition endpoints.
type IdentifyHandler struct {
	service *recognition.Service
	logger  *zap.Logger
}

// NewIdentifyHandler creates a new identify handler.
func NewIdentifyHandler(svc *recognition.Service, logger *zap.Logger) *IdentifyHandler {
	return &IdentifyHandler{service: svc, logger: logger}
}

// FaceResponse is one face of a multi-face identification.
type FaceResponse struct {
	Name         string    `json:"name"`
	Confidence   float64   `json:"confidence"`
	IsRecognized bool      `json:"is_recognized"`
	BBox         []float64 `json:"bbox,omitempty"`
}

// IdentifyResponse is the identification result. AllResults carries one
// entry per detected face in detection order and is empty, never absent, when
// no face was found.
type IdentifyResponse struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Status     string         `json:"status"`
	TotalFaces int            `json:"total_faces"`
	AllResults []FaceResponse `json:"all_results"`
}

func newIdentifyResponse(d facematch.Decision) IdentifyResponse {
	resp := IdentifyResponse{
		Name:       d.Name,
		Confidence: roundConfidence(d.Confidence),
		Status:     string(d.Status),
		TotalFaces: len(d.Faces),
		AllResults: make([]FaceResponse, len(d.Faces)),
	}
	for i, f := range d.Faces {
		fr := FaceResponse{
			Name:         f.Name,
			Confidence:   roundConfidence(f.Confidence),
			IsRecognized: f.Recognized,
		}
		if !f.Region.IsZero() {
			fr.BBox = f.Region[:]
		}
		resp.AllResults[i] = fr
	}
	return resp
}

// Identify handles POST /identify with a multipart "image" file.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	image, err := readFormFile(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := h.service.Identify(r.Context(), image)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("identify failed", zap.Error(err))
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, newIdentifyResponse(decision))
}

// FaceInput is a precomputed face embedding.
type FaceInput struct {
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox,omitempty"`
}

// IdentifyFacesRequest carries faces detected elsewhere, in detection order.
type IdentifyFacesRequest struct {
	Faces []FaceInput `json:"faces"`
}

// IdentifyFaces handles POST /identify/faces. Embeddings are normalized
// before searching.
func (h *IdentifyHandler) IdentifyFaces(w http.ResponseWriter, r *http.Request) {
	var req IdentifyFacesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	dets := make([]facematch.Detection, len(req.Faces))
	for i, f := range req.Faces {
		v, err := embedding.Vector(f.Embedding).Normalized()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("face %d: %v", i, err))
			return
		}
		dets[i] = facematch.Detection{Embedding: v, Region: facematch.BBoxFromSlice(f.BBox)}
	}

	decision, err := h.service.IdentifyFaces(r.Context(), dets)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, newIdentifyResponse(decision))
}
