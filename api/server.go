/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/plans/*          Plan management and schedule preview
  /api/subscriptions/*  Subscription approval workflow
  /api/payouts/*        Due list and payment marking
  /api/investments/*    Company investment workflow
  /api/agents/*         Agent hierarchy, commissions, rewards
  /api/gift-plans       Reward targets
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Purge and audit trail
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Post("/preview", h.PreviewSchedule)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.CreateSubscription)
			r.Get("/{id}", h.GetSubscription)
			r.Post("/{id}/approve", h.ApproveSubscription)
			r.Post("/{id}/reject", h.RejectSubscription)
			r.Post("/{id}/settle", h.SettleSubscription)
			r.Get("/{id}/schedule", h.GetSchedule)
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/due", h.ListDuePayouts)
			r.Post("/{id}/paid", h.MarkPayoutPaid)
		})

		r.Route("/investments", func(r chi.Router) {
			r.Post("/", h.CreateInvestment)
			r.Post("/{id}/approve", h.ApproveInvestment)
			r.Post("/{id}/reject", h.RejectInvestment)
			r.Get("/{id}/payouts", h.GetInvestmentPayouts)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", h.CreateAgent)
			r.Post("/{id}/approve", h.ApproveAgent)
			r.Get("/{id}/payments", h.GetAgentPayments)
			r.Get("/{id}/rewards", h.GetAgentRewards)
		})

		r.Post("/gift-plans", h.CreateGiftPlan)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/purge", h.TriggerPurge)
			r.Get("/audit", h.QueryAudit)
		})
	})

	return r
}
