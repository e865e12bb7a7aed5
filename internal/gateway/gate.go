// Package gateway is the access gate in front of tenant-facing endpoints.
// It resolves the presented access key to a tenant, enforces the usage meter
// on metered operation classes, and attaches the tenant identity to the
// request context. Allow-listed paths (health, OAuth completion, webhooks,
// metrics) are simply never wrapped by these middlewares.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"toolgate/internal/platform/metrics"
	"toolgate/internal/tenant/models"
	dErrors "toolgate/pkg/domain-errors"
	"toolgate/pkg/platform/httputil"
)

// TenantResolver resolves an access key to a tenant record.
type TenantResolver interface {
	Authenticate(ctx context.Context, accessKey string) (*models.TenantRecord, error)
}

// AdmissionMeter decides whether a metered call is admitted.
type AdmissionMeter interface {
	Consume(ctx context.Context, domain string) (models.UsageDecision, error)
}

// Gate holds the dependencies shared by the middlewares.
type Gate struct {
	tenants    TenantResolver
	meter      AdmissionMeter
	upgradeURL string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates an access gate.
func New(tenants TenantResolver, meter AdmissionMeter, upgradeURL string, logger *slog.Logger, m *metrics.Metrics) *Gate {
	return &Gate{
		tenants:    tenants,
		meter:      meter,
		upgradeURL: upgradeURL,
		logger:     logger,
		metrics:    m,
	}
}

// Authenticate extracts the bearer access key and resolves it to a tenant.
// The two rejection reasons stay distinguishable: a missing or malformed
// Authorization header answers unauthenticated, an unknown key answers
// invalid_key with a generic message that does not confirm which keys exist.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, ok := bearerKey(r.Header.Get("Authorization"))
		if !ok {
			g.reject(w, r, "unauthenticated",
				dErrors.New(dErrors.CodeUnauthenticated, "missing or malformed Authorization header"))
			return
		}

		rec, err := g.tenants.Authenticate(ctx, key)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvalidKey) {
				g.reject(w, r, "invalid_key", err)
				return
			}
			g.logger.ErrorContext(ctx, "access key resolution failed", "error", err, "path", r.URL.Path)
			g.reject(w, r, "storage_failure", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withTenant(ctx, rec)))
	})
}

// Meter enforces the usage meter for metered operation classes (tool
// invocation, event-stream connect). It must run after Authenticate.
func (g *Gate) Meter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rec, ok := TenantFrom(ctx)
		if !ok {
			// Route wiring bug: a metered route outside the Authenticate wrap.
			g.logger.ErrorContext(ctx, "metered route reached without resolved tenant", "path", r.URL.Path)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
			return
		}

		decision, err := g.meter.Consume(ctx, rec.MerchantDomain)
		if err != nil {
			// Fail closed: an unmeterable tenant is not admitted.
			g.reject(w, r, "storage_failure", err)
			return
		}
		if !decision.Allowed {
			if g.metrics != nil {
				g.metrics.CallsRejected.WithLabelValues("quota_exceeded").Inc()
			}
			g.writeQuotaExceeded(w, decision)
			return
		}

		if g.metrics != nil {
			g.metrics.CallsAdmitted.Inc()
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, reason string, err error) {
	if g.metrics != nil {
		g.metrics.CallsRejected.WithLabelValues(reason).Inc()
	}
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "gate rejection")
	}
	g.logger.WarnContext(r.Context(), "request rejected at gate",
		"reason", reason,
		"path", r.URL.Path,
	)
	httputil.WriteError(w, err)
}

// writeQuotaExceeded answers the 402-class structured rejection: current
// count, limit, reset time, and the upgrade pathway.
func (g *Gate) writeQuotaExceeded(w http.ResponseWriter, decision models.UsageDecision) {
	httputil.WriteJSON(w, http.StatusPaymentRequired, map[string]any{
		"error":             string(dErrors.CodeQuotaExceeded),
		"error_description": "plan limit reached for the current billing period",
		"usage": map[string]any{
			"count":     decision.Count,
			"limit":     decision.Limit,
			"resets_at": decision.ResetAt,
		},
		"upgrade_url": g.upgradeURL,
	})
}

func bearerKey(header string) (string, bool) {
	const bearerPrefix = "Bearer "
	key, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
