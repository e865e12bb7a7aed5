package gateway

import (
	"context"

	"toolgate/internal/tenant/models"
)

type contextKeyTenant struct{}

// withTenant attaches the resolved tenant identity to the request context.
func withTenant(ctx context.Context, rec *models.TenantRecord) context.Context {
	return context.WithValue(ctx, contextKeyTenant{}, rec)
}

// TenantFrom retrieves the tenant resolved by the gate for this request.
func TenantFrom(ctx context.Context) (*models.TenantRecord, bool) {
	rec, ok := ctx.Value(contextKeyTenant{}).(*models.TenantRecord)
	return rec, ok
}
