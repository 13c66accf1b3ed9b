/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/buildings/*          Building, roster, table, expense, computation
  /api/persons/*            Resident updates by id
  /api/expenses/*           Expense updates by id
  /api/budgeted-expenses/*  Budgeted expense updates by id
  /api/scenarios/*          Demo scenarios and reset

SECURITY NOTE:
  No authentication middleware. All endpoints are public; front the server
  with a reverse proxy if it leaves localhost.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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

	r.Route("/api", func(r chi.Router) {
		// Building routes and everything scoped to one building
		r.Route("/buildings", func(r chi.Router) {
			r.Get("/", h.ListBuildings)
			r.Post("/", h.CreateBuilding)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetBuilding)
				r.Put("/", h.UpdateBuilding)
				r.Delete("/", h.DeleteBuilding)
				r.Get("/units", h.ListUnits)

				r.Get("/persons", h.ListPersons)
				r.Post("/persons", h.CreatePerson)

				r.Route("/share-tables", func(r chi.Router) {
					r.Get("/", h.ListShareTables)
					r.Get("/validation", h.ValidateShareTables)
					r.Get("/{table}", h.GetShareTable)
					r.Put("/{table}", h.SaveShareTable)
					r.Post("/{table}/copy", h.CopyShareTable)
				})

				r.Get("/expenses", h.ListExpenses)
				r.Post("/expenses", h.CreateExpense)

				r.Get("/budgets", h.ListBudgets)
				r.Post("/budgets/{year}/generate", h.GenerateBudget)
				r.Get("/budgeted-expenses", h.ListBudgetedExpenses)
				r.Post("/budgeted-expenses", h.CreateBudgetedExpense)

				r.Get("/apportionment", h.GetApportionment)
				r.Get("/apportionment/detailed", h.GetDetailedApportionment)
				r.Get("/budget-calculation/{year}", h.GetBudgetCalculation)
				r.Get("/analysis/year-over-year", h.GetYearOverYear)
			})
		})

		// Entity routes addressed by their own id
		r.Route("/persons", func(r chi.Router) {
			r.Put("/{id}", h.UpdatePerson)
			r.Delete("/{id}", h.DeletePerson)
		})
		r.Route("/expenses", func(r chi.Router) {
			r.Put("/{id}", h.UpdateExpense)
			r.Delete("/{id}", h.DeleteExpense)
		})
		r.Route("/budgeted-expenses", func(r chi.Router) {
			r.Put("/{id}", h.UpdateBudgetedExpense)
			r.Delete("/{id}", h.DeleteBudgetedExpense)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
