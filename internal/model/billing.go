package model

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a purchasable subscription period.
type Plan string

const (
	PlanWeekly  Plan = "weekly"
	PlanMonthly Plan = "monthly"
)

// Duration returns how long a plan stays active.
func (p Plan) Duration() time.Duration {
	switch p {
	case PlanWeekly:
		return 7 * 24 * time.Hour
	case PlanMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Price returns the plan price in the smallest currency unit.
func (p Plan) Price() int64 {
	switch p {
	case PlanWeekly:
		return 2000
	case PlanMonthly:
		return 5000
	}
	return 0
}

// Provider identifies a mobile money operator.
type Provider string

const (
	ProviderMTN    Provider = "mtn"
	ProviderAirtel Provider = "airtel"
)

// BillingStatus is shared by payments and subscriptions. Records are written
// as pending; settlement happens outside this backend.
type BillingStatus string

const (
	BillingStatusPending   BillingStatus = "pending"
	BillingStatusCompleted BillingStatus = "completed"
	BillingStatusFailed    BillingStatus = "failed"
)

// Subscription grants access for a plan period.
type Subscription struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Plan      Plan          `json:"plan"`
	Status    BillingStatus `json:"status"`
	StartsAt  time.Time     `json:"starts_at"`
	EndsAt    time.Time     `json:"ends_at"`
	CreatedAt time.Time     `json:"created_at"`
}

// Payment is a mobile money transaction record.
type Payment struct {
	ID             uuid.UUID     `json:"id"`
	UserID         uuid.UUID     `json:"user_id"`
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
	Provider       Provider      `json:"provider"`
	PhoneNumber    string        `json:"phone_number"`
	Status         BillingStatus `json:"status"`
	Reference      string        `json:"reference"`
	CreatedAt      time.Time     `json:"created_at"`
}

// SubscribeRequest is the payload for purchasing a plan.
type SubscribeRequest struct {
	Plan        Plan     `json:"plan" binding:"required,oneof=weekly monthly"`
	Provider    Provider `json:"provider" binding:"required,oneof=mtn airtel"`
	PhoneNumber string   `json:"phone_number" binding:"required,e164"`
}
