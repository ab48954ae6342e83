package handler

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/eventhall/registrar/internal/model"
)

// Router builds the HTTP routing table with the full middleware stack.
// Listing an event's registrations and all attendance operations
// require an admin role; everything else only needs authentication.
func Router(h *Handler, secret []byte, log *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(AccessLog(log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(secret))

		r.Post("/events/{id}/register", h.Register)
		r.Get("/registrations/my", h.ListMyRegistrations)
		r.Delete("/registrations/{id}", h.CancelRegistration)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(model.RoleAdmin, model.RoleSuperadmin))

			r.Get("/events/{id}/registrations", h.ListRegistrations)
			r.Get("/sessions/{id}/attendance", h.SessionAttendance)
			r.Post("/attendance", h.MarkAttendance)
			r.Delete("/attendance/{id}", h.RemoveAttendance)
		})
	})

	return r
}
