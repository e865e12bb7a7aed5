package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"toolgate/internal/platform/metrics"
	dErrors "toolgate/pkg/domain-errors"
	"toolgate/pkg/platform/httputil"
)

// Header names used by the vendor platform for webhook delivery.
const (
	HeaderSignature = "X-Signature"
	HeaderTopic     = "X-Webhook-Topic"
	HeaderDomain    = "X-Merchant-Domain"
)

// Topics the core reacts to. Erasure topics delete the tenant record;
// customer-scoped topics are acknowledged without mutation because no
// customer data is held here, only shop-scoped credentials.
const (
	TopicAppUninstalled      = "app/uninstalled"
	TopicShopRedact          = "shop/redact"
	TopicCustomerDataRequest = "customers/data_request"
	TopicCustomerRedact      = "customers/redact"
)

const maxBodyBytes = 1 << 20

// TenantDeleter is the slice of the tenant service the webhook handler needs.
type TenantDeleter interface {
	Delete(ctx context.Context, domain, trigger string) (bool, error)
}

// Handler verifies and applies lifecycle notifications. Verification happens
// before any payload parsing, over the unmodified raw bytes.
type Handler struct {
	tenants      TenantDeleter
	sharedSecret string
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewHandler creates a webhook handler.
func NewHandler(tenants TenantDeleter, sharedSecret string, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		tenants:      tenants,
		sharedSecret: sharedSecret,
		logger:       logger,
		metrics:      m,
	}
}

// ServeHTTP handles one webhook delivery.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "could not read request body"))
		return
	}

	topic := r.Header.Get(HeaderTopic)
	if !Verify(raw, r.Header.Get(HeaderSignature), h.sharedSecret) {
		if h.metrics != nil {
			h.metrics.WebhooksRejected.Inc()
		}
		// Enough context to investigate tampering, never the secret or body.
		h.logger.ErrorContext(ctx, "webhook signature verification failed",
			"topic", topic,
			"merchant_domain", r.Header.Get(HeaderDomain),
			"body_bytes", len(raw),
			"signature_present", r.Header.Get(HeaderSignature) != "",
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeSignatureInvalid, "webhook signature verification failed"))
		return
	}

	if h.metrics != nil {
		h.metrics.WebhooksVerified.WithLabelValues(topic).Inc()
	}

	switch topic {
	case TopicAppUninstalled:
		h.deleteTenant(ctx, w, r.Header.Get(HeaderDomain), topic)
	case TopicShopRedact:
		var payload struct {
			ShopDomain string `json:"shop_domain"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil || payload.ShopDomain == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "payload is missing shop_domain"))
			return
		}
		h.deleteTenant(ctx, w, payload.ShopDomain, topic)
	case TopicCustomerDataRequest, TopicCustomerRedact:
		// No customer-scoped data is held by this core.
		h.logger.InfoContext(ctx, "customer notification acknowledged", "topic", topic)
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
	default:
		h.logger.WarnContext(ctx, "unhandled webhook topic acknowledged", "topic", topic)
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
	}
}

func (h *Handler) deleteTenant(ctx context.Context, w http.ResponseWriter, domain, topic string) {
	if domain == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "merchant domain is missing"))
		return
	}
	deleted, err := h.tenants.Delete(ctx, domain, "webhook:"+topic)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := "deleted"
	if !deleted {
		// Authentic notification for a domain we no longer hold: acknowledge.
		status = "acknowledged"
		h.logger.InfoContext(ctx, "erasure for absent tenant acknowledged",
			"topic", topic, "merchant_domain", domain)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
