package plan

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Subscription status values, as written by billing webhooks.
const (
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
	StatusUnpaid   = "unpaid"
)

// Subscription is the billing snapshot a tier is derived from. The tier is
// always computed, never stored.
type Subscription struct {
	PriceID     string
	Status      string
	TrialEndsAt *time.Time
}

// Resolver maps billing price identifiers to tiers. The mapping is
// operator-supplied (one price ID per paid tier) so it can track the
// billing provider's dashboard without a deploy.
type Resolver struct {
	priceToTier map[string]Tier

	// onUnknownPrice is bumped whenever a non-empty price ID has no
	// mapping. A misconfigured mapping silently locks paying customers
	// out of their tier, so this path must stay loud.
	onUnknownPrice func(priceID string)

	now func() time.Time
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithNow overrides the resolver's time source for trial-window checks.
func WithNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver builds a resolver from a price-ID → tier mapping.
// onUnknownPrice may be nil.
func NewResolver(priceToTier map[string]Tier, onUnknownPrice func(priceID string), opts ...ResolverOption) *Resolver {
	m := make(map[string]Tier, len(priceToTier))
	for id, t := range priceToTier {
		if id == "" {
			continue
		}
		m[id] = t
	}
	r := &Resolver{
		priceToTier:    m,
		onUnknownPrice: onUnknownPrice,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve derives the effective tier from a billing snapshot. It never
// fails: every malformed or lapsed input degrades to the lowest tier.
//
// Rules, in order:
//   - past_due / canceled / unpaid degrade to the lowest tier regardless
//     of the nominal price (non-payment revokes paid features everywhere,
//     not just in billing banners).
//   - an organization still inside its trial window with no price gets the
//     top tier, so trials exercise the full product.
//   - an empty price ID (never subscribed) is the lowest tier.
//   - an unrecognized price ID is the lowest tier, with a logged warning
//     and a counter bump: fail closed, but never silently.
func (r *Resolver) Resolve(sub Subscription) Tier {
	switch sub.Status {
	case StatusPastDue, StatusCanceled, StatusUnpaid:
		return LowestTier
	}

	if sub.PriceID == "" {
		if r.inTrial(sub) {
			return TierPremium
		}
		return LowestTier
	}

	if tier, ok := r.priceToTier[sub.PriceID]; ok {
		return tier
	}

	log.Warn().
		Str("price_id", sub.PriceID).
		Str("status", sub.Status).
		Msg("unrecognized billing price ID, degrading to lowest tier")
	if r.onUnknownPrice != nil {
		r.onUnknownPrice(sub.PriceID)
	}
	return LowestTier
}

func (r *Resolver) inTrial(sub Subscription) bool {
	return sub.TrialEndsAt != nil && sub.TrialEndsAt.After(r.now())
}

// DaysLeftInTrial returns the number of whole or partial days remaining in
// the trial, zero once it has ended or if no trial was set.
func (r *Resolver) DaysLeftInTrial(trialEndsAt *time.Time) int {
	if trialEndsAt == nil {
		return 0
	}
	remaining := trialEndsAt.Sub(r.now())
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}
