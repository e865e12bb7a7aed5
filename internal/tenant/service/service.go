// Package service implements tenant lifecycle operations on top of the
// record store: OAuth completion upserts, access key resolution and
// rotation, credential unsealing, and deletion.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"toolgate/internal/platform/metrics"
	"toolgate/internal/platform/tracer"
	"toolgate/internal/secretbox"
	"toolgate/internal/sentinel"
	"toolgate/internal/tenant/models"
	"toolgate/internal/tenant/store"
	dErrors "toolgate/pkg/domain-errors"
	"toolgate/pkg/secrets"
)

// Service owns all tenant record mutations except metering. Secrets are
// sealed before they reach the store and opened only on paths that need the
// live credential; identity lookups return records with the secret blanked so
// the sealed blob never leaves this package.
type Service struct {
	store   store.Store
	cipher  *secretbox.Cipher
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

// New creates a tenant service with the given store and cipher.
func New(st store.Store, cipher *secretbox.Cipher, logger *slog.Logger, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("tenant store is required")
	}
	if cipher == nil {
		return nil, errors.New("cipher is required")
	}

	svc := &Service{
		store:  st,
		cipher: cipher,
		logger: logger,
		tracer: tracer.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Upsert applies one OAuth completion tuple. An existing record keeps its
// access key, plan, and usage; a new record starts on the free plan with a
// fresh key. The returned record carries the live (unsealed) credential.
func (s *Service) Upsert(ctx context.Context, domain, secret, scope, sessionFlags string) (*models.TenantRecord, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanTenantUpsert, tracer.String(tracer.AttrMerchantDomain, domain))
	var err error
	defer func() { span.End(err) }()

	if domain == "" {
		err = dErrors.New(dErrors.CodeInvalidInput, "merchant domain is required")
		return nil, err
	}

	sealed, err := s.cipher.Seal(secret)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "could not seal credential")
		return nil, err
	}

	key, err := secrets.GenerateAccessKey()
	if err != nil {
		return nil, err
	}

	rec, created, err := s.store.UpsertByDomain(ctx, store.UpsertParams{
		Domain:       domain,
		SealedSecret: sealed,
		Scope:        scope,
		SessionFlags: sessionFlags,
		NewID:        uuid.New(),
		NewAccessKey: key,
		Now:          s.now().UTC(),
	})
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not upsert tenant")
		return nil, err
	}
	span.SetAttributes(tracer.Bool(tracer.AttrCreated, created))

	if created {
		if s.metrics != nil {
			s.metrics.TenantsCreated.Inc()
		}
		s.logger.InfoContext(ctx, "tenant created", "merchant_domain", domain)
	} else {
		s.logger.InfoContext(ctx, "tenant re-authenticated", "merchant_domain", domain)
	}

	// The caller handed us the plaintext; hand it back rather than the blob.
	rec.Secret = secret
	return rec, nil
}

// Authenticate resolves a presented access key to a tenant. The secret is
// blanked: key resolution never needs the credential and must not expose the
// sealed blob. Unknown keys map to invalid_key so the gate can keep the
// missing-header and unknown-key rejections distinguishable.
func (s *Service) Authenticate(ctx context.Context, accessKey string) (*models.TenantRecord, error) {
	rec, err := s.store.FindByAccessKey(ctx, accessKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidKey, "unknown access key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not resolve access key")
	}
	rec.Secret = ""
	return rec, nil
}

// FindByDomain returns the tenant record for a domain with the secret blanked.
func (s *Service) FindByDomain(ctx context.Context, domain string) (*models.TenantRecord, error) {
	rec, err := s.store.FindByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not load tenant")
	}
	rec.Secret = ""
	return rec, nil
}

// Credential returns the live vendor credential for a domain, opening the
// sealed blob. Only the tool execution path calls this.
func (s *Service) Credential(ctx context.Context, domain string) (string, error) {
	rec, err := s.store.FindByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not load tenant")
	}
	return s.cipher.Open(rec.Secret), nil
}

// RotateAccessKey replaces a tenant's access key and returns the new one.
// The old key is invalid the moment the store mutation lands.
func (s *Service) RotateAccessKey(ctx context.Context, domain string) (string, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanTenantRotate, tracer.String(tracer.AttrMerchantDomain, domain))
	var err error
	defer func() { span.End(err) }()

	key, err := secrets.GenerateAccessKey()
	if err != nil {
		return "", err
	}
	if err = s.store.RotateAccessKey(ctx, domain, key); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "tenant not found")
			return "", err
		}
		err = dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not rotate access key")
		return "", err
	}

	if s.metrics != nil {
		s.metrics.KeysRotated.Inc()
	}
	s.logger.InfoContext(ctx, "access key rotated", "merchant_domain", domain)
	return key, nil
}

// Delete removes a tenant record. Idempotent; reports whether a record
// existed. The trigger labels the metric (webhook erasure vs admin delete).
func (s *Service) Delete(ctx context.Context, domain, trigger string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanTenantDelete, tracer.String(tracer.AttrMerchantDomain, domain))
	var err error
	defer func() { span.End(err) }()

	deleted, err := s.store.DeleteByDomain(ctx, domain)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not delete tenant")
		return false, err
	}
	if deleted {
		if s.metrics != nil {
			s.metrics.TenantsDeleted.WithLabelValues(trigger).Inc()
		}
		s.logger.InfoContext(ctx, "tenant deleted", "merchant_domain", domain, "trigger", trigger)
	}
	return deleted, nil
}
