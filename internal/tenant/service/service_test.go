package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"toolgate/internal/secretbox"
	"toolgate/internal/tenant/models"
	"toolgate/internal/tenant/store"
	dErrors "toolgate/pkg/domain-errors"
)

type TenantServiceSuite struct {
	suite.Suite

	ctx    context.Context
	store  *store.InMemoryStore
	cipher *secretbox.Cipher
	svc    *Service
	now    time.Time
}

func TestTenantServiceSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceSuite))
}

func (s *TenantServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cipher, err := secretbox.New("test-master-secret", logger)
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.cipher = cipher
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	svc, err := New(s.store, cipher, logger, WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *TenantServiceSuite) TestUpsertCreatesTenant() {
	rec, err := s.svc.Upsert(s.ctx, "shop-a.example.com", "shpat_secret", "read_products", "per-user")
	s.Require().NoError(err)

	s.NotEmpty(rec.ID)
	s.NotEmpty(rec.AccessKey)
	s.Equal(models.PlanFree, rec.Plan)
	s.Equal(0, rec.UsageCount)
	s.Equal(s.now.Add(models.BillingPeriod), rec.UsageResetAt)
	s.Equal("shpat_secret", rec.Secret, "caller gets the live credential back")

	// The store never sees the plaintext.
	stored, err := s.store.FindByDomain(s.ctx, "shop-a.example.com")
	s.Require().NoError(err)
	s.NotEqual("shpat_secret", stored.Secret)
	s.Equal("shpat_secret", s.cipher.Open(stored.Secret))
}

func (s *TenantServiceSuite) TestUpsertPreservesAccessKeyOnReauth() {
	first, err := s.svc.Upsert(s.ctx, "shop-a.example.com", "old-secret", "read_products", "")
	s.Require().NoError(err)

	second, err := s.svc.Upsert(s.ctx, "shop-a.example.com", "new-secret", "read_products,write_products", "per-user")
	s.Require().NoError(err)

	s.Equal(first.AccessKey, second.AccessKey)
	s.Equal(first.ID, second.ID)

	cred, err := s.svc.Credential(s.ctx, "shop-a.example.com")
	s.Require().NoError(err)
	s.Equal("new-secret", cred)
}

func (s *TenantServiceSuite) TestUpsertRequiresDomain() {
	_, err := s.svc.Upsert(s.ctx, "", "secret", "", "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *TenantServiceSuite) TestAuthenticate() {
	rec, err := s.svc.Upsert(s.ctx, "shop-a.example.com", "shpat_secret", "", "")
	s.Require().NoError(err)

	s.Run("resolves a valid key with the secret blanked", func() {
		resolved, err := s.svc.Authenticate(s.ctx, rec.AccessKey)
		s.Require().NoError(err)
		s.Equal(rec.ID, resolved.ID)
		s.Empty(resolved.Secret)
	})

	s.Run("unknown key maps to invalid_key", func() {
		_, err := s.svc.Authenticate(s.ctx, "no-such-key")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidKey))
	})
}

func (s *TenantServiceSuite) TestRotateAccessKey() {
	rec, err := s.svc.Upsert(s.ctx, "shop-a.example.com", "shpat_secret", "", "")
	s.Require().NoError(err)

	newKey, err := s.svc.RotateAccessKey(s.ctx, "shop-a.example.com")
	s.Require().NoError(err)
	s.NotEqual(rec.AccessKey, newKey)

	_, err = s.svc.Authenticate(s.ctx, rec.AccessKey)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidKey), "old key must stop resolving")

	resolved, err := s.svc.Authenticate(s.ctx, newKey)
	s.Require().NoError(err)
	s.Equal(rec.ID, resolved.ID)

	_, err = s.svc.RotateAccessKey(s.ctx, "unknown.example.com")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *TenantServiceSuite) TestCredentialOpensLegacyPlaintext() {
	// A record written before encryption was introduced.
	_, _, err := s.store.UpsertByDomain(s.ctx, store.UpsertParams{
		Domain:       "legacy.example.com",
		SealedSecret: "raw-unsealed-token",
		NewID:        uuid.New(),
		NewAccessKey: "legacy-key",
		Now:          s.now,
	})
	s.Require().NoError(err)

	cred, err := s.svc.Credential(s.ctx, "legacy.example.com")
	s.Require().NoError(err)
	s.Equal("raw-unsealed-token", cred)
}

func (s *TenantServiceSuite) TestDeleteIsIdempotent() {
	_, err := s.svc.Upsert(s.ctx, "shop-a.example.com", "shpat_secret", "", "")
	s.Require().NoError(err)

	deleted, err := s.svc.Delete(s.ctx, "shop-a.example.com", "admin")
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.svc.Delete(s.ctx, "shop-a.example.com", "admin")
	s.Require().NoError(err)
	s.False(deleted)

	_, err = s.svc.FindByDomain(s.ctx, "shop-a.example.com")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
