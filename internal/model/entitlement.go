package model

import "time"

// Usage reports current consumption of a metered resource against the
// plan's cap. Limit of -1 means unlimited.
type Usage struct {
	Metric     string `json:"metric"`
	Current    int    `json:"current"`
	Limit      int    `json:"limit"`
	CanAddMore bool   `json:"can_add_more"`
}

// EntitlementSnapshot is the read model served to clients so UIs can
// enable or disable controls optimistically. It carries no authority:
// the server re-checks every mutating request against the database.
type EntitlementSnapshot struct {
	OrganizationID     string     `json:"organization_id"`
	Tier               string     `json:"tier"`
	Features           []string   `json:"features"`
	Bookings           Usage      `json:"bookings"`
	TeamMembers        Usage      `json:"team_members"`
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	GeneratedAt        time.Time  `json:"generated_at"`
}
