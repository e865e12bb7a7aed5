package store

import (
	"context"
	"sync"
	"time"

	"toolgate/internal/sentinel"
	"toolgate/internal/tenant/models"
)

// InMemoryStore keeps tenant records in memory behind one mutex. It is the
// test double for the PostgreSQL backend and the dev-mode store; the mutex
// gives it the same atomicity guarantees as the production backend.
type InMemoryStore struct {
	mu    sync.RWMutex
	byDom map[string]*models.TenantRecord
	byKey map[string]string // access key -> domain
}

// NewMemory constructs an empty in-memory tenant store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		byDom: make(map[string]*models.TenantRecord),
		byKey: make(map[string]string),
	}
}

func (s *InMemoryStore) UpsertByDomain(_ context.Context, p UpsertParams) (*models.TenantRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byDom[p.Domain]; ok {
		existing.Secret = p.SealedSecret
		existing.Scope = p.Scope
		existing.SessionFlags = p.SessionFlags
		copyRecord := *existing
		return &copyRecord, false, nil
	}

	rec := &models.TenantRecord{
		ID:             p.NewID,
		MerchantDomain: p.Domain,
		Secret:         p.SealedSecret,
		Scope:          p.Scope,
		SessionFlags:   p.SessionFlags,
		AccessKey:      p.NewAccessKey,
		Plan:           models.PlanFree,
		UsageCount:     0,
		UsageResetAt:   p.Now.Add(models.BillingPeriod),
		CreatedAt:      p.Now,
	}
	s.byDom[p.Domain] = rec
	s.byKey[p.NewAccessKey] = p.Domain
	copyRecord := *rec
	return &copyRecord, true, nil
}

func (s *InMemoryStore) FindByDomain(_ context.Context, domain string) (*models.TenantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byDom[domain]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRecord := *rec
	return &copyRecord, nil
}

func (s *InMemoryStore) FindByAccessKey(_ context.Context, key string) (*models.TenantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	domain, ok := s.byKey[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRecord := *s.byDom[domain]
	return &copyRecord, nil
}

func (s *InMemoryStore) RotateAccessKey(_ context.Context, domain, newKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byDom[domain]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byKey, rec.AccessKey)
	rec.AccessKey = newKey
	s.byKey[newKey] = domain
	return nil
}

func (s *InMemoryStore) SetPlan(_ context.Context, domain string, plan models.Plan, subscriptionID string, resetAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byDom[domain]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Plan = plan
	rec.SubscriptionID = subscriptionID
	rec.UsageCount = 0
	rec.UsageResetAt = resetAt
	return nil
}

func (s *InMemoryStore) Consume(_ context.Context, domain string, now time.Time) (models.UsageDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byDom[domain]
	if !ok {
		return models.UsageDecision{}, sentinel.ErrNotFound
	}

	// Lazy rollover: reset before the limit is evaluated.
	if !now.Before(rec.UsageResetAt) {
		rec.UsageCount = 0
		rec.UsageResetAt = now.Add(models.BillingPeriod)
	}

	limit := rec.Plan.Limit()
	if limit != models.Unlimited && rec.UsageCount >= limit {
		return models.UsageDecision{Allowed: false, Count: rec.UsageCount, Limit: limit, ResetAt: rec.UsageResetAt}, nil
	}

	rec.UsageCount++
	return models.UsageDecision{Allowed: true, Count: rec.UsageCount, Limit: limit, ResetAt: rec.UsageResetAt}, nil
}

func (s *InMemoryStore) DeleteByDomain(_ context.Context, domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byDom[domain]
	if !ok {
		return false, nil
	}
	delete(s.byKey, rec.AccessKey)
	delete(s.byDom, domain)
	return true, nil
}
