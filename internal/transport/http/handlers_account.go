package httptransport

import (
	"net/http"
	"time"

	"toolgate/internal/gateway"
	dErrors "toolgate/pkg/domain-errors"
	"toolgate/pkg/platform/httputil"
)

type statusResponse struct {
	MerchantDomain string    `json:"merchant_domain"`
	Plan           string    `json:"plan"`
	UsageCount     int       `json:"usage_count"`
	UsageLimit     int       `json:"usage_limit"`
	UsageResetAt   time.Time `json:"usage_reset_at"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
}

// handleStatus reports the caller's plan and usage. Authenticated but not
// metered: checking the quota must never consume it.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, ok := gateway.TenantFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	// Re-read so the response reflects counters mutated since admission.
	fresh, err := h.tenants.FindByDomain(ctx, rec.MerchantDomain)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		MerchantDomain: fresh.MerchantDomain,
		Plan:           string(fresh.Plan),
		UsageCount:     fresh.UsageCount,
		UsageLimit:     fresh.Plan.Limit(),
		UsageResetAt:   fresh.UsageResetAt,
		SubscriptionID: fresh.SubscriptionID,
	})
}

type rotateResponse struct {
	AccessKey string `json:"access_key"`
}

// handleRotateKey issues a fresh access key for the caller. The presented
// key stops resolving the moment the rotation lands.
func (h *Handler) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, ok := gateway.TenantFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	key, err := h.tenants.RotateAccessKey(ctx, rec.MerchantDomain)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rotateResponse{AccessKey: key})
}
