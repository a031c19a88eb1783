// Package httpserver exposes the operational HTTP surface: health, metrics
// and session introspection.
package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tenantcore/internal/platform/middleware"
	"tenantcore/pkg/requestcontext"
)

// New builds an HTTP server with sane defaults for this project.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig lists what the operational router exposes.
type RouterConfig struct {
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
	Sessions middleware.SessionParser
	Logger   *slog.Logger
}

// NewRouter mounts:
//
//	GET /healthz  liveness, always 200
//	GET /readyz   runs every check, 503 when one fails
//	GET /metrics  Prometheus exposition
//	GET /session  the verified caller scope of the bearer token
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.Checks, logger))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if cfg.Sessions != nil {
		r.With(middleware.RequireSession(cfg.Sessions, logger)).Get("/session", introspect(logger))
	}
	return r
}

func readiness(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, logger, status, results)
	}
}

type sessionResponse struct {
	Scope     string `json:"scope"`
	Level     string `json:"level"`
	Sharing   string `json:"sharing,omitempty"`
	Privilege string `json:"privilege"`
}

func introspect(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _ := requestcontext.Isolation(r.Context())
		writeJSON(w, logger, http.StatusOK, sessionResponse{
			Scope:     scope.Identifier(),
			Level:     scope.Level().String(),
			Sharing:   scope.Sharing().String(),
			Privilege: requestcontext.Privilege(r.Context()).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
