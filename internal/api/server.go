package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/probuild/gateway/internal/api/handler"
	mw "github.com/probuild/gateway/internal/api/middleware"
	"github.com/probuild/gateway/internal/config"
	"github.com/probuild/gateway/internal/core"
	"github.com/probuild/gateway/internal/identity"
	"github.com/probuild/gateway/internal/records"
	"github.com/probuild/gateway/internal/webhook"
)

type Server struct {
	router        chi.Router
	logger        zerolog.Logger
	services      *core.Services
	pool          *pgxpool.Pool
	cfg           *config.Config
	usageRecorder *mw.UsageRecorder
	dispatcher    *webhook.Dispatcher
	verifier      identity.Verifier
	recordStore   records.Store
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, cfg *config.Config, verifier identity.Verifier, recordStore records.Store) *Server {
	services := core.NewServices(pool)

	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger,
		services:      services,
		pool:          pool,
		cfg:           cfg,
		usageRecorder: mw.NewUsageRecorder(services.Usage, logger),
		dispatcher:    webhook.NewDispatcher(services.Webhook, logger),
		verifier:      verifier,
		recordStore:   recordStore,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	apiKey := handler.NewAPIKey(s.services.Key, s.services.Auth)
	wh := handler.NewWebhook(s.services.Webhook, s.dispatcher)
	usage := handler.NewUsage(s.services.Usage)

	// Key-authenticated surface. Every request here gets exactly one
	// usage record, accepted or rejected; a coarse per-key throttle
	// sits in front of the per-key hourly ceilings.
	s.router.Group(func(r chi.Router) {
		r.Use(s.usageRecorder.Middleware)
		r.Use(httprate.Limit(
			s.cfg.SurfaceRateLimit,
			time.Minute,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
				return r.Header.Get("X-API-Key"), nil
			}),
		))

		r.Post("/validate-key", apiKey.Validate)

		r.Route("/api", func(r chi.Router) {
			r.Use(mw.KeyAuth(s.services.Auth, s.services.Usage))

			for _, collection := range []string{
				records.CollectionProjects,
				records.CollectionEstimates,
				records.CollectionInvoices,
			} {
				res := handler.NewResource(s.recordStore, collection)
				r.With(mw.RequireScope(collection, "read")).Get("/"+collection, res.List)
				r.With(mw.RequireScope(collection, "write")).Post("/"+collection, res.Create)
			}
		})
	})

	// Admin surface, bearer-authenticated against the identity service.
	s.router.Group(func(r chi.Router) {
		r.Use(mw.AdminAuth(s.verifier))

		r.Post("/create-key", apiKey.Create)
		r.Post("/webhook/trigger", wh.Trigger)
		r.Post("/webhook/test", wh.Test)

		r.Route("/api/v1", func(r chi.Router) {
			// API keys
			r.Get("/api-keys", apiKey.List)
			r.Get("/api-keys/{id}", apiKey.Get)
			r.Delete("/api-keys/{id}", apiKey.Revoke)

			// Webhook endpoints
			r.Get("/webhooks", wh.List)
			r.Post("/webhooks", wh.Create)
			r.Get("/webhooks/{id}", wh.Get)
			r.Put("/webhooks/{id}", wh.Update)
			r.Delete("/webhooks/{id}", wh.Delete)
			r.Get("/webhooks/{id}/deliveries", wh.Deliveries)

			// Usage records
			r.Get("/usage", usage.List)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

// Close flushes the async usage recorder.
func (s *Server) Close() {
	s.usageRecorder.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
