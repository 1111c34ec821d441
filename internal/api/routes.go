package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stillpoint/drip/internal/auth"
)

// SetupRoutes builds the router. Three trust zones:
//   - public: health, auth flow, subscribe/unsubscribe (the marketing
//     site posts here without credentials)
//   - scheduler: POST /process behind the shared secret
//   - admin: everything else under /api behind session auth
func SetupRoutes(h *Handlers, authManager *auth.Manager, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Process-Secret"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Post("/process", h.HandleProcess)

	if authManager != nil {
		r.Get("/auth/login", authManager.HandleLogin)
		r.Get("/auth/callback", authManager.HandleCallback)
		r.Get("/auth/logout", authManager.HandleLogout)
		r.Get("/auth/user", authManager.HandleUserInfo)
	}

	r.Route("/api", func(r chi.Router) {
		// Public intake endpoints.
		r.Post("/subscribers", h.CreateSubscriber)
		r.Post("/subscribers/unsubscribe", h.Unsubscribe)

		// Admin surface.
		r.Group(func(r chi.Router) {
			if authManager != nil {
				r.Use(authManager.RequireAuth)
			}

			r.Get("/subscribers", h.ListSubscribers)
			r.Get("/subscribers/{id}", h.GetSubscriber)

			r.Route("/sequences", func(r chi.Router) {
				r.Get("/", h.ListSequences)
				r.Post("/", h.CreateSequence)
				r.Get("/{id}", h.GetSequence)
				r.Put("/{id}", h.UpdateSequence)
				r.Post("/{id}/status", h.SetSequenceStatus)
			})

			r.Route("/enrollments", func(r chi.Router) {
				r.Get("/", h.ListEnrollments)
				r.Get("/{id}", h.GetEnrollment)
				r.Get("/{id}/log", h.GetEnrollmentLog)
			})
		})
	})

	return r
}
