package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-recognizer/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.extractor, s.logger)
	identifyHandler := handlers.NewIdentifyHandler(s.service, s.logger)
	personsHandler := handlers.NewPersonsHandler(s.service, s.logger)
	statsHandler := handlers.NewStatsHandler(s.service)
	compareHandler := handlers.NewCompareHandler(s.service, s.logger)

	s.router.Handle("/metrics", promhttp.Handler())

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)

		// Recognition
		r.Post("/identify", identifyHandler.Identify)
		r.Post("/identify/faces", identifyHandler.IdentifyFaces)
		r.Post("/compare", compareHandler.Compare)

		// Persons
		r.Post("/persons", personsHandler.Add)
		r.Post("/persons/batch", personsHandler.AddMultiple)
		r.Delete("/persons/{name}", personsHandler.Delete)
		r.Get("/persons/{name}/average", personsHandler.Average)

		// Stats
		r.Get("/stats", statsHandler.Get)
	})

	// Legacy routes used by existing clients
	s.router.Get("/health", healthHandler.Check)
	s.router.Post("/identify", identifyHandler.Identify)
	s.router.Post("/add-person", personsHandler.Add)
	s.router.Post("/add-person-multiple", personsHandler.AddMultiple)
	s.router.Get("/database-stats", statsHandler.Get)
	s.router.Delete("/delete-person/{name}", personsHandler.Delete)
}
