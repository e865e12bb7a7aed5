package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"toolgate/internal/platform/middleware"
	"toolgate/internal/tenant/models"
	dErrors "toolgate/pkg/domain-errors"
	"toolgate/pkg/platform/httputil"
)

type setPlanRequest struct {
	Domain         string `json:"domain"`
	Plan           string `json:"plan"`
	SubscriptionID string `json:"subscription_id"`
}

// handleSetPlan applies a confirmed plan transition from the billing
// collaborator. Guarded by the admin token middleware.
func (h *Handler) handleSetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[setPlanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Domain == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "domain is required"))
		return
	}

	if err := h.billing.SetPlan(ctx, req.Domain, models.Plan(req.Plan), req.SubscriptionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"merchant_domain": req.Domain,
		"plan":            req.Plan,
	})
}

// handleAdminDelete removes a tenant record administratively. Idempotent,
// like the webhook-driven erasure.
func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := chi.URLParam(r, "domain")
	if domain == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "domain is required"))
		return
	}

	deleted, err := h.tenants.Delete(ctx, domain, "admin")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !deleted {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "tenant not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
