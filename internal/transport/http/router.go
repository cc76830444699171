// Package httptransport assembles the HTTP surface: the consent endpoints,
// schema introspection, health, and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consenthandler "consentry/internal/consent/handler"
	"consentry/internal/platform/middleware"
	"consentry/internal/transport/http/shared"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler is the thin HTTP layer for the non-consent endpoints. Consent
// endpoints live in their own handler package and are mounted alongside.
type Handler struct {
	logger  *slog.Logger
	schemas SchemaProvider
	checks  map[string]HealthChecker
}

func NewHandler(logger *slog.Logger, schemas SchemaProvider, checks map[string]HealthChecker) *Handler {
	return &Handler{
		logger:  logger,
		schemas: schemas,
		checks:  checks,
	}
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler, consent *consenthandler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Group(func(platform chi.Router) {
		platform.Use(middleware.Recovery(h.logger))
		platform.Use(middleware.RequestID)
		platform.Get("/healthz", h.handleHealth)
		platform.Get("/schema", h.handleSchema)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	consent.Register(r)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}
	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	shared.WriteJSON(w, status, body)
}
