// Package httptransport assembles the API router: platform middleware,
// service endpoints and the domain handlers.
package httptransport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tiptap/internal/platform/metrics"
	"tiptap/internal/platform/middleware"
	"tiptap/pkg/platform/httputil"
	"tiptap/pkg/platform/middleware/metadata"
	"tiptap/pkg/platform/middleware/requesttime"
)

const serviceName = "TipTap Pay API"

// Registrar is implemented by the domain handlers.
type Registrar interface {
	Register(r chi.Router)
	Routes() []string
}

// HealthCheck reports whether the backing database is reachable.
type HealthCheck func(ctx context.Context) error

// Config carries everything NewRouter wires together. A nil Database means
// the stores are in memory.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Database       HealthCheck
	RequestTimeout time.Duration
	Handlers       []Registrar
	Now            func() time.Time
	// RateLimit, when set, runs after client metadata is on the context.
	RateLimit func(http.Handler) http.Handler
}

type router struct {
	db     HealthCheck
	now    func() time.Time
	routes []string
}

type bannerResponse struct {
	Message   string            `json:"message"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
	Timestamp time.Time         `json:"timestamp"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

type dbStatusResponse struct {
	Database string `json:"database"`
	Status   string `json:"status"`
}

type notFoundResponse struct {
	Error           string   `json:"error"`
	Message         string   `json:"message"`
	AvailableRoutes []string `json:"availableRoutes"`
}

// Database states reported by the health endpoints.
const (
	DBConnected    = "Connected"
	DBDisconnected = "Disconnected"
	DBInMemory     = "In-memory"
)

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	rt := &router{
		db:  cfg.Database,
		now: cfg.Now,
		routes: []string{
			"GET /",
			"GET /api/health",
			"GET /api/db-status",
			"GET /metrics",
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit)
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/", rt.handleBanner)
	r.Get("/api/health", rt.handleHealth)
	r.Get("/api/db-status", rt.handleDBStatus)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	for _, h := range cfg.Handlers {
		h.Register(r)
		rt.routes = append(rt.routes, h.Routes()...)
	}

	r.NotFound(rt.handleNotFound)
	return r
}

func (rt *router) handleBanner(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, bannerResponse{
		Message: serviceName,
		Status:  "OK",
		Endpoints: map[string]string{
			"health":   "/api/health",
			"products": "/api/products",
			"orders":   "/api/orders",
		},
		Timestamp: rt.now().UTC(),
	})
}

func (rt *router) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Message:   serviceName + " is running",
		Database:  rt.databaseState(r.Context()),
		Timestamp: rt.now().UTC(),
	})
}

// handleDBStatus answers 503 when the database is configured but unreachable.
func (rt *router) handleDBStatus(w http.ResponseWriter, r *http.Request) {
	state := rt.databaseState(r.Context())
	status := http.StatusOK
	if state == DBDisconnected {
		status = http.StatusServiceUnavailable
	}
	database := "postgres"
	if rt.db == nil {
		database = "memory"
	}
	httputil.WriteJSON(w, status, dbStatusResponse{Database: database, Status: state})
}

func (rt *router) databaseState(ctx context.Context) string {
	if rt.db == nil {
		return DBInMemory
	}
	if err := rt.db(ctx); err != nil {
		return DBDisconnected
	}
	return DBConnected
}

func (rt *router) handleNotFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusNotFound, notFoundResponse{
		Error:           "Route not found",
		Message:         fmt.Sprintf("The route %s does not exist", r.URL.Path),
		AvailableRoutes: rt.routes,
	})
}
