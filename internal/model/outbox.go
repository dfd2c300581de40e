package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Outbox event types emitted by the billing service. Consumers use
// plan.changed to invalidate cached entitlement snapshots.
const (
	EventPlanChanged        = "plan.changed"
	EventPaymentFailed      = "billing.payment_failed"
	EventSubscriptionEnded  = "billing.subscription_ended"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
}

// PlanChangedPayload is published whenever a webhook rewrites an
// organization's billing fields.
type PlanChangedPayload struct {
	OrganizationID     uuid.UUID `json:"organization_id"`
	PriceID            string    `json:"price_id"`
	SubscriptionStatus string    `json:"subscription_status"`
	Tier               string    `json:"tier"`
}
