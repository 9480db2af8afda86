package controlplane

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes wires every §6 control-plane operation onto a chi.Mux,
// grounded on the teacher's internal/api/routes.go middleware stack
// (Logger, Recoverer, RealIP, RequestID, permissive CORS for the
// dashboard origin).
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.CreateCampaign)
		r.Get("/", h.ListCampaigns)
		r.Get("/{id}", h.GetCampaign)
		r.Get("/{id}/next", h.NextRecipientPreview)
		r.Post("/{id}/start", h.StartCampaign)
		r.Post("/{id}/pause", h.PauseCampaign)
		r.Post("/{id}/resume", h.ResumeCampaign)
		r.Post("/{id}/stop", h.StopCampaign)
	})

	r.Get("/tenants/{tenantId}/events", h.SubscribeEvents)

	return r
}
