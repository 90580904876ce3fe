package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	service *recognition.Service
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(svc *recognition.Service) *StatsHandler {
	return &StatsHandler{service: svc}
}

// StatsResponse represents the identity store statistics
type StatsResponse struct {
	Success         bool           `json:"success"`
	TotalPeople     int            `json:"total_people"`
	TotalEmbeddings int            `json:"total_embeddings"`
	People          map[string]int `json:"people"`
	Dimension       int            `json:"dimension"`
	Metric          string         `json:"metric"`
	Threshold       float64        `json:"threshold"`
	Location        string         `json:"location"`
}

// Get handles GET /stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st := h.service.GetStatistics()
	store := h.service.Store()

	respondJSON(w, http.StatusOK, StatsResponse{
		Success:         true,
		TotalPeople:     st.IdentityCount,
		TotalEmbeddings: st.TotalEmbeddings,
		People:          st.People(),
		Dimension:       store.Dimension(),
		Metric:          string(h.service.Metric()),
		Threshold:       h.service.Threshold(),
		Location:        store.Location(),
	})
}
