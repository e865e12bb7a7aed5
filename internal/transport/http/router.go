package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toolgate/internal/gateway"
	"toolgate/internal/platform/health"
	"toolgate/internal/platform/middleware"
	"toolgate/internal/webhook"
)

// RouterConfig collects everything the router wires besides the handler set.
type RouterConfig struct {
	Gate            *gateway.Gate
	Webhooks        *webhook.Handler
	Health          *health.Handler
	AdminSigningKey string
	RequestTimeout  time.Duration
}

// NewRouter wires all public endpoints with middleware.
//
// The allow-listed set (health, metrics, OAuth completion, webhooks) never
// passes the access gate; webhook deliveries authenticate by signature
// instead, and the admin surface by the billing collaborator's token.
func NewRouter(h *Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	cfg.Health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		r.Post("/auth/complete", h.handleAuthComplete)
		r.Post("/webhooks", cfg.Webhooks.ServeHTTP)

		// Authenticated, non-metered operation class.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Gate.Authenticate)
			r.Get("/status", h.handleStatus)
			r.Post("/keys/rotate", h.handleRotateKey)
		})

		// Admin surface for the billing collaborator.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.AdminSigningKey, logger))
			r.Post("/admin/plan", h.handleSetPlan)
			r.Delete("/admin/tenants/{domain}", h.handleAdminDelete)
		})
	})

	// Metered operation class: tool invocation and event-stream connect.
	// No write timeout wrapper here; the event stream is long-lived.
	r.Group(func(r chi.Router) {
		r.Use(cfg.Gate.Authenticate)
		r.Use(cfg.Gate.Meter)
		r.Post("/tools/invoke", h.handleToolInvoke)
		r.Get("/tools/events", h.handleToolEvents)
	})

	return r
}
