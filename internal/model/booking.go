package model

import (
	"time"

	"github.com/google/uuid"
)

// Booking status constants
const (
	BookingStatusScheduled = "scheduled"
	BookingStatusCompleted = "completed"
	BookingStatusCanceled  = "canceled"
	BookingStatusNoShow    = "no_show"
)

// Booking is a scheduled service job for a customer. Creation is metered:
// each organization gets a per-calendar-month allowance set by its tier.
type Booking struct {
	Base
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	CustomerID     uuid.UUID `json:"customer_id" db:"customer_id"`
	AssigneeID     *uuid.UUID `json:"assignee_id" db:"assignee_id"`
	ServiceType    string    `json:"service_type" db:"service_type"`
	Status         string    `json:"status" db:"status"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	Address        string    `json:"address" db:"address"`
	Notes          *string   `json:"notes" db:"notes"`
	PriceCents     int64     `json:"price_cents" db:"price_cents"`
}

type CreateBookingRequest struct {
	CustomerID  uuid.UUID  `json:"customer_id" binding:"required"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
	ServiceType string     `json:"service_type" binding:"required"`
	StartTime   time.Time  `json:"start_time" binding:"required,future"`
	EndTime     time.Time  `json:"end_time" binding:"required,gtfield=StartTime"`
	Address     string     `json:"address" binding:"required"`
	Notes       *string    `json:"notes"`
	PriceCents  int64      `json:"price_cents" binding:"min=0"`
}

type UpdateBookingRequest struct {
	AssigneeID *uuid.UUID `json:"assignee_id"`
	Status     *string    `json:"status" binding:"omitempty,oneof=scheduled completed canceled no_show"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	Notes      *string    `json:"notes"`
}

type BookingFilters struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	Status         string
	StartDate      time.Time
	EndDate        time.Time
}
