// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"log/slog"

	"toolgate/internal/billing"
	"toolgate/internal/tenant/service"
	"toolgate/internal/tools"
)

// Handler carries the services the endpoints delegate to.
type Handler struct {
	tenants  *service.Service
	billing  *billing.Service
	executor tools.Executor
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(tenants *service.Service, billingSvc *billing.Service, executor tools.Executor, logger *slog.Logger) *Handler {
	return &Handler{
		tenants:  tenants,
		billing:  billingSvc,
		executor: executor,
		logger:   logger,
	}
}
