package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facegraph/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	deps := handlers.Deps{
		Store:    s.store,
		Defaults: s.config.Profile.Defaults,
		Logger:   s.logger,
	}

	// Create handlers
	statsHandler := handlers.NewStatsHandler(deps)
	clustersHandler := handlers.NewClustersHandler(deps, statsHandler)
	facesHandler := handlers.NewFacesHandler(deps)
	similaritiesHandler := handlers.NewSimilaritiesHandler(deps, s.rebuilder, statsHandler)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", statsHandler.Get)

		// Clusters
		r.Get("/clusters", clustersHandler.Rank)
		r.Get("/clusters/watchlist-dominance", clustersHandler.WatchlistDominance)
		r.Get("/clusters/{id}/faces", clustersHandler.Members)
		r.Delete("/clusters/{id}", clustersHandler.Clear)

		// Faces and matches
		r.Get("/faces/reference", facesHandler.Reference)
		r.Get("/faces/{id}", facesHandler.Get)
		r.Get("/faces/{id}/matches", facesHandler.Nearest)
		r.Get("/faces/{id}/watchlist", facesHandler.Watchlist)
		r.Get("/self-matches", facesHandler.SelfMatches)

		// Similarity graph
		r.Post("/similarities/rebuild", similaritiesHandler.Rebuild)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}
