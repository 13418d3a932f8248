/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for operator tooling
  5. Actor:      Verified caller identity from gateway headers

ROUTE GROUPS:
  /api/providers/*   Provider registry + availability
  /api/sessions/*    Session booking and decisions
  /api/ledger/*      Record appends
  /api/holders/*     Balances, history, dashboard
  /api/payouts/*     Payout workflow

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
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor-Id", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	// Health check stays outside the actor requirement.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(ActorFromHeaders)

		// Provider routes
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.ListProviders)
			r.Post("/", h.CreateProvider)
			r.Get("/{id}", h.GetProvider)
			r.Post("/{id}/approve", h.ApproveProvider)
			r.Post("/{id}/suspend", h.SuspendProvider)
			r.Post("/{id}/slots", h.PublishSlot)
			r.Get("/{id}/slots", h.ListSlots)
			r.Get("/{id}/sessions", h.ListProviderSessions)
		})

		// Session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Post("/{id}/accept", h.AcceptSession)
			r.Post("/{id}/reject", h.RejectSession)
		})

		// Ledger routes
		r.Route("/ledger", func(r chi.Router) {
			r.Post("/records", h.AppendRecord)
		})

		// Holder routes
		r.Route("/holders", func(r chi.Router) {
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/records", h.GetRecords)
			r.Get("/{id}/dashboard", h.GetDashboard)
		})

		// Payout routes
		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", h.CreatePayout)
			r.Post("/{id}/approve", h.ApprovePayout)
			r.Post("/{id}/mark-approved", h.MarkPayoutApproved)
			r.Post("/{id}/settle", h.SettlePayout)
		})
	})

	return r
}
