/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  unique ID per request for tracing
  2. Logger:     one logrus line per request
  3. Recoverer:  panic recovery (500 instead of crash)
  4. CORS:       cross-origin requests for the back-office frontend
  5. RateLimit:  per-IP limit (ulule/limiter), /api only

ROUTE GROUPS:
  /api/statuses/*       Status registry
  /api/orders/*         Production orders
  /api/stock/{family}/* Quantity ledger (finished | wip)
  /api/sales-orders/*   Sales orders and provisioning
  /api/sales-lines/*    Line provisioning
  /api/catalog/*        Catalog maintenance
  /api/admin/*          Audit and reset
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. The actor is taken from X-Actor as given.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
)

// RouterOptions configures NewRouter. Zero values are usable.
type RouterOptions struct {
	CORSOrigins []string
	// RateLimit in ulule format; empty disables limiting.
	RateLimit    string
	LimiterStore limiter.Store
	Log          *logrus.Entry
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) (*chi.Mux, error) {
	log := opts.Log
	if log == nil {
		log = h.log
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", actorHeader},
		AllowCredentials: true,
	}))

	var limit func(http.Handler) http.Handler
	if opts.RateLimit != "" {
		mw, err := RateLimit(opts.RateLimit, opts.LimiterStore)
		if err != nil {
			return nil, err
		}
		limit = mw
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}

		r.Route("/statuses", func(r chi.Router) {
			r.Get("/", h.ListStatuses)
			r.Get("/{code}/transitions", h.GetTransitions)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/active", h.ActiveOrders)
			r.Post("/status", h.BatchChangeStatus)
			r.Get("/{id}", h.GetOrder)
			r.Get("/{id}/history", h.GetOrderHistory)
			r.Post("/{id}/status", h.ChangeOrderStatus)
		})

		r.Route("/stock/{family}", func(r chi.Router) {
			r.Get("/records", h.ListStockRecords)
			r.Get("/quantity", h.GetQuantity)
			r.Get("/movements", h.ListMovements)
			r.Post("/postings", h.CreatePosting)
			r.Get("/transfers", h.ListTransfers)
			r.Post("/transfers", h.CreateTransfer)
			r.Get("/transfers/{id}", h.GetTransfer)
			r.Post("/transfers/{id}/complete", h.CompleteTransfer)
			r.Post("/transfers/{id}/cancel", h.CancelTransfer)
		})

		r.Route("/sales-orders", func(r chi.Router) {
			r.Get("/", h.ListSalesOrders)
			r.Post("/", h.CreateSalesOrder)
			r.Get("/{id}", h.GetSalesOrder)
			r.Post("/{id}/status", h.SetSalesOrderStatus)
			r.Post("/{id}/provision", h.ProvisionSalesOrder)
		})

		r.Post("/sales-lines/{id}/provision", h.ProvisionLine)

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/products", h.SaveProduct)
			r.Get("/products/{id}", h.GetProduct)
			r.Post("/colors", h.SaveColor)
			r.Post("/material-colors", h.SaveMaterialColor)
			r.Get("/bundles/{id}/components", h.ListBundleComponents)
			r.Post("/bundles/{id}/components", h.SaveBundleComponent)
			r.Post("/bundles/{id}/color-mappings", h.SaveColorMapping)
			r.Post("/bundles/{id}/presets", h.SavePreset)
			r.Post("/variants/resolve", h.ResolveVariant)
			r.Get("/variants/{id}", h.GetVariant)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/audit", h.RunAudit)
			r.Get("/audit/last", h.LastAudit)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r, nil
}
