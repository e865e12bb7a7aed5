package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"toolgate/internal/sentinel"
	"toolgate/internal/tenant/models"
)

// PostgresStore persists tenant records in PostgreSQL. It is the production
// backend: unique constraints on merchant_domain and access_key enforce the
// identity invariants, and every mutation is either a single statement or a
// short serializing transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `id, merchant_domain, secret, scope, session_flags, access_key, plan, usage_count, usage_reset_at, subscription_id, created_at`

// UpsertByDomain relies on the merchant_domain unique constraint: the insert
// wins for a new domain, and the conflict branch only refreshes the OAuth
// fields, leaving access key, plan, and usage untouched. Concurrent upserts
// for one domain therefore can never mint two access keys.
func (s *PostgresStore) UpsertByDomain(ctx context.Context, p UpsertParams) (*models.TenantRecord, bool, error) {
	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, '', $9)
		ON CONFLICT (merchant_domain) DO UPDATE SET
			secret = EXCLUDED.secret,
			scope = EXCLUDED.scope,
			session_flags = EXCLUDED.session_flags
		RETURNING ` + tenantColumns
	row := s.db.QueryRowContext(ctx, query,
		p.NewID,
		p.Domain,
		p.SealedSecret,
		p.Scope,
		p.SessionFlags,
		p.NewAccessKey,
		string(models.PlanFree),
		p.Now.Add(models.BillingPeriod),
		p.Now,
	)
	rec, err := scanTenant(row)
	if err != nil {
		return nil, false, fmt.Errorf("upsert tenant: %w", err)
	}
	return rec, rec.ID == p.NewID, nil
}

func (s *PostgresStore) FindByDomain(ctx context.Context, domain string) (*models.TenantRecord, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE merchant_domain = $1`
	rec, err := scanTenant(s.db.QueryRowContext(ctx, query, domain))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by domain: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByAccessKey(ctx context.Context, key string) (*models.TenantRecord, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE access_key = $1`
	rec, err := scanTenant(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by access key: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) RotateAccessKey(ctx context.Context, domain, newKey string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET access_key = $2 WHERE merchant_domain = $1`, domain, newKey)
	if err != nil {
		return fmt.Errorf("rotate access key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate access key: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetPlan(ctx context.Context, domain string, plan models.Plan, subscriptionID string, resetAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants
		SET plan = $2, subscription_id = $3, usage_count = 0, usage_reset_at = $4
		WHERE merchant_domain = $1`,
		domain, string(plan), subscriptionID, resetAt)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Consume serializes the rollover-check-increment sequence for one tenant
// behind a row lock, so near the limit boundary at most one of N concurrent
// calls takes the last slot.
func (s *PostgresStore) Consume(ctx context.Context, domain string, now time.Time) (models.UsageDecision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.UsageDecision{}, fmt.Errorf("begin consume tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var (
		plan    string
		count   int
		resetAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT plan, usage_count, usage_reset_at FROM tenants WHERE merchant_domain = $1 FOR UPDATE`,
		domain).Scan(&plan, &count, &resetAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UsageDecision{}, sentinel.ErrNotFound
		}
		return models.UsageDecision{}, fmt.Errorf("load tenant usage: %w", err)
	}

	// Lazy rollover, persisted before the limit is evaluated.
	if !now.Before(resetAt) {
		count = 0
		resetAt = now.Add(models.BillingPeriod)
		if _, err := tx.ExecContext(ctx,
			`UPDATE tenants SET usage_count = 0, usage_reset_at = $2 WHERE merchant_domain = $1`,
			domain, resetAt); err != nil {
			return models.UsageDecision{}, fmt.Errorf("roll over usage period: %w", err)
		}
	}

	limit := models.Plan(plan).Limit()
	if limit != models.Unlimited && count >= limit {
		// Rejected calls are not charged; commit to persist any rollover.
		if err := tx.Commit(); err != nil {
			return models.UsageDecision{}, fmt.Errorf("commit consume tx: %w", err)
		}
		return models.UsageDecision{Allowed: false, Count: count, Limit: limit, ResetAt: resetAt}, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tenants SET usage_count = usage_count + 1 WHERE merchant_domain = $1`,
		domain); err != nil {
		return models.UsageDecision{}, fmt.Errorf("increment usage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.UsageDecision{}, fmt.Errorf("commit consume tx: %w", err)
	}
	return models.UsageDecision{Allowed: true, Count: count + 1, Limit: limit, ResetAt: resetAt}, nil
}

func (s *PostgresStore) DeleteByDomain(ctx context.Context, domain string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE merchant_domain = $1`, domain)
	if err != nil {
		return false, fmt.Errorf("delete tenant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete tenant: %w", err)
	}
	return affected > 0, nil
}

func scanTenant(row *sql.Row) (*models.TenantRecord, error) {
	var rec models.TenantRecord
	var plan string
	err := row.Scan(
		&rec.ID,
		&rec.MerchantDomain,
		&rec.Secret,
		&rec.Scope,
		&rec.SessionFlags,
		&rec.AccessKey,
		&plan,
		&rec.UsageCount,
		&rec.UsageResetAt,
		&rec.SubscriptionID,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Plan = models.Plan(plan)
	return &rec, nil
}
