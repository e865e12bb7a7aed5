package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolgate/internal/sentinel"
	"toolgate/internal/tenant/models"
	"toolgate/pkg/testutil"
)

func upsertParams(domain, key string, now time.Time) UpsertParams {
	return UpsertParams{
		Domain:       domain,
		SealedSecret: "sealed:" + domain,
		Scope:        "read_products",
		SessionFlags: "per-user",
		NewID:        uuid.New(),
		NewAccessKey: key,
		Now:          now,
	}
}

func TestInMemoryStoreOperations(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	// Create
	rec, created, err := s.UpsertByDomain(ctx, upsertParams("shop-a.example.com", "key-a", now))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.PlanFree, rec.Plan)
	assert.Equal(t, 0, rec.UsageCount)
	assert.Equal(t, now.Add(models.BillingPeriod), rec.UsageResetAt)

	// Re-authentication refreshes the credential but keeps identity fields.
	p := upsertParams("shop-a.example.com", "key-should-be-discarded", now.Add(time.Hour))
	p.SealedSecret = "sealed:fresh"
	again, created, err := s.UpsertByDomain(ctx, p)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID, again.ID)
	assert.Equal(t, "key-a", again.AccessKey)
	assert.Equal(t, "sealed:fresh", again.Secret)
	assert.Equal(t, rec.CreatedAt, again.CreatedAt)

	// Lookups
	byDom, err := s.FindByDomain(ctx, "shop-a.example.com")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byDom.ID)

	byKey, err := s.FindByAccessKey(ctx, "key-a")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byKey.ID)

	_, err = s.FindByDomain(ctx, "unknown.example.com")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = s.FindByAccessKey(ctx, "key-should-be-discarded")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	// Copy integrity: mutating a returned record must not leak into the store.
	byDom.Plan = models.PlanPro
	fresh, err := s.FindByDomain(ctx, "shop-a.example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, fresh.Plan)

	// Rotation invalidates the old key immediately, touching nothing else.
	require.NoError(t, s.RotateAccessKey(ctx, "shop-a.example.com", "key-b"))
	_, err = s.FindByAccessKey(ctx, "key-a")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	rotated, err := s.FindByAccessKey(ctx, "key-b")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, rotated.ID)
	assert.Equal(t, "sealed:fresh", rotated.Secret)

	require.ErrorIs(t, s.RotateAccessKey(ctx, "unknown.example.com", "key-x"), sentinel.ErrNotFound)

	// Plan change resets usage.
	_, err = s.Consume(ctx, "shop-a.example.com", now)
	require.NoError(t, err)
	resetAt := now.Add(models.BillingPeriod)
	require.NoError(t, s.SetPlan(ctx, "shop-a.example.com", models.PlanStarter, "sub_123", resetAt))
	planned, err := s.FindByDomain(ctx, "shop-a.example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PlanStarter, planned.Plan)
	assert.Equal(t, "sub_123", planned.SubscriptionID)
	assert.Equal(t, 0, planned.UsageCount)
	assert.Equal(t, resetAt, planned.UsageResetAt)

	require.ErrorIs(t, s.SetPlan(ctx, "unknown.example.com", models.PlanPro, "sub_9", resetAt), sentinel.ErrNotFound)

	// Deletion is idempotent.
	deleted, err := s.DeleteByDomain(ctx, "shop-a.example.com")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.DeleteByDomain(ctx, "shop-a.example.com")
	require.NoError(t, err)
	assert.False(t, deleted)
	_, err = s.FindByAccessKey(ctx, "key-b")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStoreConcurrentUpsertSingleIdentity(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	keys := make(chan string, 32)
	successes, errs := testutil.RunConcurrent(32, func(idx int) error {
		rec, _, err := s.UpsertByDomain(ctx, upsertParams("shop-a.example.com", uuid.NewString(), now))
		if err != nil {
			return err
		}
		keys <- rec.AccessKey
		return nil
	})
	require.Empty(t, errs)
	require.EqualValues(t, 32, successes)
	close(keys)

	first := <-keys
	for key := range keys {
		assert.Equal(t, first, key, "concurrent upserts minted more than one access key")
	}
}

func TestInMemoryStoreConsume(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("increments until the plan limit and never past it", func(t *testing.T) {
		s := NewMemory()
		_, _, err := s.UpsertByDomain(ctx, upsertParams("shop-a.example.com", "key-a", now))
		require.NoError(t, err)

		limit := models.PlanFree.Limit()
		for i := 1; i <= limit; i++ {
			d, err := s.Consume(ctx, "shop-a.example.com", now)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, i, d.Count)
			assert.Equal(t, limit, d.Limit)
		}

		// Rejected calls do not count against the next period.
		for i := 0; i < 3; i++ {
			d, err := s.Consume(ctx, "shop-a.example.com", now)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, limit, d.Count)
			assert.Equal(t, limit, d.Limit)
		}
	})

	t.Run("unknown tenant", func(t *testing.T) {
		s := NewMemory()
		_, err := s.Consume(ctx, "unknown.example.com", now)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("rolls over an expired period before evaluating the limit", func(t *testing.T) {
		s := NewMemory()
		_, _, err := s.UpsertByDomain(ctx, upsertParams("shop-a.example.com", "key-a", now))
		require.NoError(t, err)

		limit := models.PlanFree.Limit()
		for i := 0; i < limit; i++ {
			_, err := s.Consume(ctx, "shop-a.example.com", now)
			require.NoError(t, err)
		}

		later := now.Add(models.BillingPeriod)
		d, err := s.Consume(ctx, "shop-a.example.com", later)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.Count)
		assert.Equal(t, later.Add(models.BillingPeriod), d.ResetAt)
	})

	t.Run("unlimited plan has no cap", func(t *testing.T) {
		s := NewMemory()
		_, _, err := s.UpsertByDomain(ctx, upsertParams("shop-a.example.com", "key-a", now))
		require.NoError(t, err)
		require.NoError(t, s.SetPlan(ctx, "shop-a.example.com", models.PlanPro, "sub_1", now.Add(models.BillingPeriod)))

		for i := 1; i <= models.PlanFree.Limit()+10; i++ {
			d, err := s.Consume(ctx, "shop-a.example.com", now)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, i, d.Count)
			assert.Equal(t, models.Unlimited, d.Limit)
		}
	})
}

func TestInMemoryStoreConcurrentConsumeAtBoundary(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	_, _, err := s.UpsertByDomain(ctx, upsertParams("shop-a.example.com", "key-a", now))
	require.NoError(t, err)

	// Drive the counter to limit-1, then race N calls for the last slot.
	limit := models.PlanFree.Limit()
	for i := 0; i < limit-1; i++ {
		_, err := s.Consume(ctx, "shop-a.example.com", now)
		require.NoError(t, err)
	}

	var admitted atomic.Int32
	successes, errs := testutil.RunConcurrent(16, func(int) error {
		d, err := s.Consume(ctx, "shop-a.example.com", now)
		if err != nil {
			return err
		}
		if d.Allowed {
			admitted.Add(1)
		}
		return nil
	})
	require.Empty(t, errs)
	require.EqualValues(t, 16, successes)
	assert.EqualValues(t, 1, admitted.Load(), "exactly one concurrent call may take the last slot")

	rec, err := s.FindByDomain(ctx, "shop-a.example.com")
	require.NoError(t, err)
	assert.Equal(t, limit, rec.UsageCount)
}
