/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. Logger:     request logging
  2. Recoverer:  panic recovery (500 instead of crash)
  3. RequestID:  unique id per request for tracing
  4. CORS:       cross-origin requests for the web frontend

ROUTE GROUPS:
  /api/wallet/*    user-facing wallet view (identity required)
  /api/internal/*  backend-only mutations (credit, debit, points)

The /api/internal group must be firewalled from the public network; the
wallet itself does not authenticate service callers.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all wallet routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/wallet", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/balance", h.GetBalance)
			r.Post("/convert", h.ConvertPoints)
			r.Get("/transactions", h.GetTransactions)
			r.Get("/stats", h.GetStats)
		})

		r.Route("/internal", func(r chi.Router) {
			r.Post("/credit", h.InternalCredit)
			r.Post("/debit", h.InternalDebit)
			r.Post("/points", h.InternalAwardPoints)
		})
	})

	return r
}
