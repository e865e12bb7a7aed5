// Package billing applies plan transitions signalled by the external
// billing-confirmation collaborator. A transition sets the tier and
// subscription id and always resets the usage counter and period; there is
// no partial-period proration in either direction.
package billing

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

// Service is the plan state machine: free <-> starter <-> pro, transitioned
// only by an explicit SetPlan call.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service instance.
type Option func(*Service)

// WithTracer sets the tracer for span emission.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a billing service over the given store.
func New(st store.Store, logger *slog.Logger, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("tenant store is required")
	}
	svc := &Service{
		store:  st,
		logger: logger,
		tracer: tracer.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SetPlan moves a tenant to the given tier. Paid tiers require the external
// subscription id; the free tier clears it. Upgrade and downgrade both reset
// the usage counter and recompute the period in the same store operation.
func (s *Service) SetPlan(ctx context.Context, domain string, plan models.Plan, subscriptionID string) error {
	ctx, span := s.tracer.Start(ctx, tracer.SpanPlanChange,
		tracer.String(tracer.AttrMerchantDomain, domain),
		tracer.String(tracer.AttrPlan, string(plan)),
	)
	var err error
	defer func() { span.End(err) }()

	if !plan.Valid() {
		err = dErrors.New(dErrors.CodeInvalidInput, "unknown plan tier")
		return err
	}
	if plan == models.PlanFree {
		subscriptionID = ""
	} else if subscriptionID == "" {
		err = dErrors.New(dErrors.CodeInvalidInput, "subscription id is required for paid plans")
		return err
	}

	resetAt := s.now().UTC().Add(models.BillingPeriod)
	if err = s.store.SetPlan(ctx, domain, plan, subscriptionID, resetAt); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "tenant not found")
			return err
		}
		err = dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not apply plan change")
		return err
	}

	if s.metrics != nil {
		s.metrics.PlanChanges.WithLabelValues(string(plan)).Inc()
	}
	s.logger.InfoContext(ctx, "plan changed",
		"merchant_domain", domain,
		"plan", plan,
		"usage_resets_at", resetAt,
	)
	return nil
}
