package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/agrimind/farm-assist/internal/container"
)

// Config contains dependencies needed for the router setup.
type Config struct {
	Container              *container.Container
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter wires the API surface. Server-wide middleware (request ID,
// logging, recoverer) are applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := `{"status":"healthy","database":"connected"}`
		if err := cfg.Container.Pool.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = `{"status":"degraded","database":"disconnected"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})

	c := cfg.Container

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", c.AuthHandler.Register)
			r.Post("/auth/login", c.AuthHandler.Login)
			r.Post("/auth/refresh", c.AuthHandler.Refresh)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/auth/logout", c.AuthHandler.Logout)
			r.Post("/auth/logout-all", c.AuthHandler.LogoutAll)
			r.Get("/auth/me", c.AuthHandler.Me)

			r.Route("/seasons", func(r chi.Router) {
				r.Post("/", c.SeasonHandler.CreateSeason)
				r.Get("/", c.SeasonHandler.ListSeasons)

				r.Route("/{seasonID}", func(r chi.Router) {
					r.Get("/", c.SeasonHandler.GetSeason)
					r.Put("/", c.SeasonHandler.UpdateSeason)
					r.Delete("/", c.SeasonHandler.DeleteSeason)

					r.Get("/phase", c.PhaseHandler.GetCurrentPhase)
					r.Put("/phase", c.PhaseHandler.UpdatePhase)
					r.Get("/phase/readiness", c.PhaseHandler.GetHarvestReadiness)
					r.Post("/phase/transition", c.PhaseHandler.AutoTransition)
					r.Get("/phase/summary", c.PhaseHandler.GetPhaseSummary)
					r.Get("/recommendations", c.PhaseHandler.GetRecommendations)

					r.Post("/tasks", c.TaskHandler.CreateTask)
					r.Get("/tasks", c.TaskHandler.ListTasks)

					r.Get("/deviations", c.FeedbackHandler.ListDeviations)
				})
			})

			r.Route("/tasks/{taskID}", func(r chi.Router) {
				r.Get("/", c.TaskHandler.GetTask)
				r.Delete("/", c.TaskHandler.DeleteTask)
				r.Post("/complete", c.TaskHandler.CompleteTask)
				r.Post("/skip", c.TaskHandler.SkipTask)
			})

			r.Post("/feedback/analyze", c.FeedbackHandler.AnalyzeFeedback)

			r.Post("/chat", c.ChatHandler.Chat)
			r.Get("/chat/{sessionID}/history", c.ChatHandler.GetHistory)
		})
	})

	return r
}
