// Package api assembles the HTTP surface: route table, middleware order,
// and the split between public and token-protected endpoints.
package api

import (
	"crypto/rsa"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencrvs/webhooks/internal/api/handlers"
	"github.com/opencrvs/webhooks/internal/api/middleware"
	"github.com/opencrvs/webhooks/internal/observability"
)

// RouterConfig carries the handlers and cross-cutting dependencies the
// router wires together.
type RouterConfig struct {
	Subscriptions *handlers.SubscriptionsHandler
	Registrations *handlers.RegistrationsHandler
	Trigger       *handlers.TriggerHandler
	Health        *handlers.HealthHandler

	// MetricsHandler serves the Prometheus scrape endpoint. Nil when
	// metrics are disabled; the route is then not registered.
	MetricsHandler http.Handler
	HTTPMetrics    observability.HTTPMetrics

	AuthPublicKey *rsa.PublicKey
	MaxBodyBytes  int64
}

// NewRouter builds the service router. Metrics sit outermost so recorded
// durations cover the full request, including auth and body-limit checks.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Metrics(cfg.HTTPMetrics))
	r.Use(middleware.RequestID)
	r.Use(middleware.MaxBody(cfg.MaxBodyBytes, cfg.HTTPMetrics))

	r.Get("/health", cfg.Health.Check)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.AuthPublicKey))

		r.Post("/subscribe", cfg.Subscriptions.Subscribe)
		r.Get("/webhooks", cfg.Registrations.List)
		r.Delete("/webhooks/{webhookId}", cfg.Registrations.Delete)
		r.Post("/webhooks/delete-by-client", cfg.Registrations.DeleteByClientID)
		r.Post("/trigger", cfg.Trigger.Trigger)
	})

	return r
}
