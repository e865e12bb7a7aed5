// Package models defines the tenant record and plan tiers shared by the
// store, services, and transport layers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// BillingPeriod is the fixed rolling window over which usage is counted
// before automatic reset.
const BillingPeriod = 30 * 24 * time.Hour

// Unlimited is the sentinel limit for plans with no usage cap.
const Unlimited = -1

// Plan is a named tier determining the usage cap.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
)

// planLimits maps each tier to its per-period call limit.
var planLimits = map[Plan]int{
	PlanFree:    70,
	PlanStarter: 1000,
	PlanPro:     Unlimited,
}

// Valid reports whether p is a known tier.
func (p Plan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}

// Limit returns the per-period call limit for the plan, or Unlimited.
// Unknown tiers get the free limit so a corrupt record never grants
// unlimited access.
func (p Plan) Limit() int {
	if limit, ok := planLimits[p]; ok {
		return limit
	}
	return planLimits[PlanFree]
}

// TenantRecord is the single durable record per merchant.
type TenantRecord struct {
	ID             uuid.UUID // stable internal identifier, immutable
	MerchantDomain string    // external identity, unique
	Secret         string    // vendor credential; sealed at rest
	Scope          string    // OAuth grant metadata, overwritten on re-auth
	SessionFlags   string
	AccessKey      string // capability token, unique, stable across re-auth
	Plan           Plan
	UsageCount     int
	UsageResetAt   time.Time
	SubscriptionID string // external billing id; empty unless plan is paid
	CreatedAt      time.Time
}

// UsageDecision is the outcome of one metered admission check.
type UsageDecision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}
