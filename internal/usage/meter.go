// Package usage meters tool calls per tenant against the plan's billing
// period limit. Period rollover is lazy: it happens inside the store's
// atomic consume on the next call for that tenant, never via a background
// sweep.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"toolgate/internal/platform/metrics"
	"toolgate/internal/platform/tracer"
	"toolgate/internal/sentinel"
	"toolgate/internal/tenant/models"
	"toolgate/internal/tenant/store"
	dErrors "toolgate/pkg/domain-errors"
)

// Meter decides admission for metered calls. Usage is charged at admission,
// not at completion of the downstream tool call: a client that disconnects
// mid-stream has still consumed its slot.
type Meter struct {
	store   store.Store
	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Meter instance.
type Option func(*Meter)

// WithTracer sets the tracer for span emission.
func WithTracer(t tracer.Tracer) Option {
	return func(m *Meter) { m.tracer = t }
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Meter) { m.metrics = mx }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Meter) { m.now = now }
}

// New creates a usage meter over the given store.
func New(st store.Store, logger *slog.Logger, opts ...Option) (*Meter, error) {
	if st == nil {
		return nil, errors.New("tenant store is required")
	}
	m := &Meter{
		store:  st,
		logger: logger,
		tracer: tracer.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Consume charges one call against the tenant's current billing period.
//
// Unknown tenants fail closed with an all-zero rejection rather than an
// error: the gate treats that the same as an exhausted quota for a tenant
// that does not exist. Storage failures also fail closed, surfaced as a
// storage_failure domain error so the transport layer can answer 503 --
// an unmeterable tenant is never silently admitted.
func (m *Meter) Consume(ctx context.Context, domain string) (models.UsageDecision, error) {
	ctx, span := m.tracer.Start(ctx, tracer.SpanUsageConsume, tracer.String(tracer.AttrMerchantDomain, domain))
	var err error
	defer func() { span.End(err) }()

	decision, err := m.store.Consume(ctx, domain, m.now().UTC())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = nil
			return models.UsageDecision{Allowed: false, Count: 0, Limit: 0}, nil
		}
		err = dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not meter call")
		return models.UsageDecision{}, err
	}

	span.SetAttributes(
		tracer.Bool(tracer.AttrAllowed, decision.Allowed),
		tracer.Int(tracer.AttrUsageCount, decision.Count),
		tracer.Int(tracer.AttrUsageLimit, decision.Limit),
	)

	if !decision.Allowed {
		if m.metrics != nil {
			m.metrics.QuotaExceeded.Inc()
		}
		m.logger.WarnContext(ctx, "quota exceeded",
			"merchant_domain", domain,
			"usage_count", decision.Count,
			"usage_limit", decision.Limit,
			"resets_at", decision.ResetAt,
		)
	}
	return decision, nil
}
