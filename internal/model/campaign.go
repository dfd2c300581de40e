package model

import (
	"time"

	"github.com/google/uuid"
)

// Campaign status constants
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusFinished  = "finished"
)

// Campaign is a marketing automation campaign. The whole resource sits
// behind the marketing_tools feature gate.
type Campaign struct {
	Base
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	Name           string     `json:"name" db:"name"`
	Channel        string     `json:"channel" db:"channel"`
	Status         string     `json:"status" db:"status"`
	Subject        *string    `json:"subject" db:"subject"`
	Body           *string    `json:"body" db:"body"`
	ScheduledAt    *time.Time `json:"scheduled_at" db:"scheduled_at"`
}

type CreateCampaignRequest struct {
	Name        string     `json:"name" binding:"required"`
	Channel     string     `json:"channel" binding:"required,oneof=email sms"`
	Subject     *string    `json:"subject"`
	Body        *string    `json:"body"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type UpdateCampaignRequest struct {
	Name        *string    `json:"name"`
	Status      *string    `json:"status" binding:"omitempty,oneof=draft scheduled active paused finished"`
	Subject     *string    `json:"subject"`
	Body        *string    `json:"body"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// AdAccount links an organization to an external ad platform account.
// Behind the ads feature gate; the platform API calls themselves happen
// elsewhere.
type AdAccount struct {
	Base
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Platform       string    `json:"platform" db:"platform"`
	ExternalID     string    `json:"external_id" db:"external_id"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	Connected      bool      `json:"connected" db:"connected"`
}

type ConnectAdAccountRequest struct {
	Platform    string `json:"platform" binding:"required,oneof=google facebook"`
	ExternalID  string `json:"external_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
}
