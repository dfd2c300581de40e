package model

import (
	"time"

	"github.com/google/uuid"
)

type OrganizationStatus string

const (
	OrganizationStatusActive   OrganizationStatus = "active"
	OrganizationStatusInactive OrganizationStatus = "inactive"
)

// Organization is the tenant root. Every row of tenant data hangs off it
// by foreign key. Organizations are never hard-deleted; lapsed tenants go
// inactive and their tier degrades.
//
// The billing fields (StripeCustomerID, StripePriceID, SubscriptionStatus,
// TrialEndsAt, SubscriptionEndsAt) are written only by the billing webhook
// service. The gating layer reads them and derives the tier on every
// request; the tier itself is never stored.
type Organization struct {
	Base
	Name               string     `db:"name" json:"name"`
	Status             string     `db:"status" json:"status"`
	StripeCustomerID   *string    `db:"stripe_customer_id" json:"-"`
	StripePriceID      *string    `db:"stripe_price_id" json:"-"`
	SubscriptionStatus string     `db:"subscription_status" json:"subscription_status"`
	TrialEndsAt        *time.Time `db:"trial_ends_at" json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time `db:"subscription_ends_at" json:"subscription_ends_at,omitempty"`
}

// PriceID returns the raw billing price identifier, empty when the
// organization never subscribed.
func (o *Organization) PriceID() string {
	if o.StripePriceID == nil {
		return ""
	}
	return *o.StripePriceID
}

type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateOrganizationRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type OrganizationFilters struct {
	Status string
	Search string
}

// BillingUpdate is the mutation a billing webhook applies to an
// organization's subscription fields.
type BillingUpdate struct {
	OrganizationID     uuid.UUID
	StripeCustomerID   *string
	StripePriceID      *string
	SubscriptionStatus string
	TrialEndsAt        *time.Time
	SubscriptionEndsAt *time.Time
}
