package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a subscription plan tier.
type Plan string

const (
	PlanClassic    Plan = "CLASSIC"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// ValidPlan reports whether p is a known plan.
func ValidPlan(p Plan) bool {
	switch p {
	case PlanClassic, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// Subscription is an organization's billing subscription. One per
// organization; created as a 14-day trial at signup and kept in sync with
// the payment processor afterwards.
type Subscription struct {
	ID                   uuid.UUID  `json:"id"`
	OrganizationID       uuid.UUID  `json:"organization_id"`
	Plan                 Plan       `json:"plan"`
	Status               string     `json:"status"` // trialing, active, past_due, canceled, ...
	CurrentPeriodStart   time.Time  `json:"current_period_start"`
	CurrentPeriodEnd     time.Time  `json:"current_period_end"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	StripePriceID        string     `json:"stripe_price_id,omitempty"`
	StripeProductID      string     `json:"stripe_product_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TrialDays is the length of the trial subscription created at signup.
const TrialDays = 14
