// Package tracer provides a lightweight tracing abstraction for the core
// services. It keeps OpenTelemetry out of domain code: services depend on
// this interface, production wires the OTel adapter, tests wire the no-op.
package tracer

import "context"

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// If err is non-nil, the span is marked as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span names used by the core services.
const (
	SpanTenantUpsert = "tenant.upsert"
	SpanTenantRotate = "tenant.rotate_key"
	SpanTenantDelete = "tenant.delete"
	SpanUsageConsume = "usage.consume"
	SpanPlanChange   = "billing.set_plan"
)

// Attribute keys used by the core services.
const (
	AttrMerchantDomain = "merchant_domain"
	AttrPlan           = "plan"
	AttrCreated        = "created"
	AttrAllowed        = "allowed"
	AttrUsageCount     = "usage_count"
	AttrUsageLimit     = "usage_limit"
)
