package httptransport

import (
	"net/http"
	"time"

	"toolgate/internal/platform/middleware"
	"toolgate/pkg/platform/httputil"
)

// completeRequest is the tuple the OAuth handshake collaborator hands the
// core once the vendor redirect has been exchanged for a credential.
type completeRequest struct {
	Domain       string `json:"domain"`
	Secret       string `json:"secret"`
	Scope        string `json:"scope"`
	SessionFlags string `json:"session_flags"`
}

type tenantResponse struct {
	TenantID       string    `json:"tenant_id"`
	MerchantDomain string    `json:"merchant_domain"`
	AccessKey      string    `json:"access_key"`
	Plan           string    `json:"plan"`
	UsageCount     int       `json:"usage_count"`
	UsageLimit     int       `json:"usage_limit"`
	UsageResetAt   time.Time `json:"usage_reset_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// handleAuthComplete upserts the tenant record for a finished OAuth
// handshake. Re-authentication refreshes the credential and scope but keeps
// the issued access key, so existing client integrations stay valid.
func (h *Handler) handleAuthComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[completeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.tenants.Upsert(ctx, req.Domain, req.Secret, req.Scope, req.SessionFlags)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tenantResponse{
		TenantID:       rec.ID.String(),
		MerchantDomain: rec.MerchantDomain,
		AccessKey:      rec.AccessKey,
		Plan:           string(rec.Plan),
		UsageCount:     rec.UsageCount,
		UsageLimit:     rec.Plan.Limit(),
		UsageResetAt:   rec.UsageResetAt,
		CreatedAt:      rec.CreatedAt,
	})
}
