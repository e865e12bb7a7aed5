package httptransport

import (
	"fmt"
	"net/http"
	"time"

	"toolgate/internal/gateway"
	"toolgate/internal/platform/middleware"
	"toolgate/internal/tools"
	dErrors "toolgate/pkg/domain-errors"
	"toolgate/pkg/platform/httputil"
)

// handleToolInvoke executes one admitted tool call against the vendor
// platform with the tenant's live credential. The admission charge has
// already been committed by the gate; a failed vendor call is not refunded.
func (h *Handler) handleToolInvoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	rec, ok := gateway.TenantFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	req, ok := httputil.DecodeJSON[tools.Invocation](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Tool == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "tool name is required"))
		return
	}

	credential, err := h.tenants.Credential(ctx, rec.MerchantDomain)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.executor.Execute(ctx, credential, *req)
	if err != nil {
		h.logger.ErrorContext(ctx, "tool execution failed",
			"tool", req.Tool,
			"merchant_domain", rec.MerchantDomain,
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "tool execution failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

// handleToolEvents is the metered event-stream connect. The connection is
// charged once at admission; a client that drops mid-stream keeps the charge.
func (h *Handler) handleToolEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}
