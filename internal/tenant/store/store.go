package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"toolgate/internal/tenant/models"
)

// Error contract: all store methods return sentinel.ErrNotFound when the
// requested tenant does not exist, nil on success, and wrapped errors for
// infrastructure failures. Services translate these into domain errors
// exactly once.

// UpsertParams carries one OAuth completion tuple plus the identity fields
// to use if (and only if) the domain is new. When the domain already exists
// the NewID/NewAccessKey values are discarded and the stored identity is
// preserved, so repeated re-authentication never rotates a tenant's key.
type UpsertParams struct {
	Domain       string
	SealedSecret string
	Scope        string
	SessionFlags string

	NewID        uuid.UUID
	NewAccessKey string
	Now          time.Time
}

// Store is the sole point of truth for tenant records. Every mutation is a
// single atomic operation against the backend; callers never compose
// read-modify-write sequences.
type Store interface {
	// UpsertByDomain atomically creates or refreshes the record for a domain.
	// Two concurrent calls for the same domain yield exactly one record and
	// one access key. Reports whether a new record was created.
	UpsertByDomain(ctx context.Context, p UpsertParams) (*models.TenantRecord, bool, error)

	FindByDomain(ctx context.Context, domain string) (*models.TenantRecord, error)
	FindByAccessKey(ctx context.Context, key string) (*models.TenantRecord, error)

	// RotateAccessKey replaces the access key, invalidating the old one
	// immediately. No other field is disturbed.
	RotateAccessKey(ctx context.Context, domain, newKey string) error

	// SetPlan applies a plan transition: tier, subscription id, usage counter
	// reset and a fresh reset timestamp, all in one operation.
	SetPlan(ctx context.Context, domain string, plan models.Plan, subscriptionID string, resetAt time.Time) error

	// Consume performs the metered admission check for one call: lazy period
	// rollover, limit evaluation, and the increment, as one atomic unit.
	// Rejected calls are never incremented.
	Consume(ctx context.Context, domain string, now time.Time) (models.UsageDecision, error)

	// DeleteByDomain removes the record. Idempotent: deleting an absent
	// domain reports false without error.
	DeleteByDomain(ctx context.Context, domain string) (bool, error)
}
