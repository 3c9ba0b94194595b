// Package rest is the HTTP surface of the service: Telegram webhook, health
// probes, metrics and the read-only operator API.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	querybus "github.com/maxsergeev/YD-Project-2/application/queries/bus"
	"github.com/maxsergeev/YD-Project-2/interfaces/http/rest/handlers"
	"github.com/maxsergeev/YD-Project-2/interfaces/http/rest/middleware"
	"github.com/maxsergeev/YD-Project-2/pkg/auth"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

const readinessTimeout = 3 * time.Second

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options selects the optional parts of the router
type Options struct {
	// Webhook serves Telegram updates; nil in polling mode
	Webhook http.Handler
	// Metrics serves /metrics; nil when Prometheus is not the sink
	Metrics http.Handler
	// Validator enables the operator API
	Validator      *auth.JWTValidator
	AllowedOrigins []string
	Debug          bool
}

// Router creates and configures the HTTP router
type Router struct {
	queryBus *querybus.QueryBus
	store    Pinger
	opts     Options
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	queryBus *querybus.QueryBus,
	store Pinger,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		queryBus: queryBus,
		store:    store,
		opts:     opts,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errHandler := pkgerrors.NewErrorHandler(rt.logger, rt.opts.Debug)

	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(errHandler.Middleware)

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.opts.Metrics)
	}
	if rt.opts.Webhook != nil {
		router.Method(http.MethodPost, "/telegram/webhook/{secret}", rt.opts.Webhook)
	}

	if rt.opts.Validator != nil {
		router.Route("/api/v1", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: rt.opts.AllowedOrigins,
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization", "X-Request-ID"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         300,
			}))
			r.Use(middleware.Authenticate(rt.opts.Validator, errHandler, rt.logger))

			entries := handlers.NewEntriesHandler(rt.queryBus, errHandler, rt.logger)
			r.Get("/diaries/{userID}/entries/{date}", entries.GetEntries)
		})
	}

	return router
}

// healthCheck handles liveness requests
func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports ready only while the store answers
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := rt.store.Ping(ctx); err != nil {
		rt.logger.Warn("Readiness check failed", zap.Error(err))
		writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeStatus(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
