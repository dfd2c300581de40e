package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testResolver(onUnknown func(string)) *Resolver {
	return NewResolver(map[string]Tier{
		"price_starter": TierStarter,
		"price_growth":  TierGrowth,
		"price_premium": TierPremium,
	}, onUnknown, WithNow(func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}))
}

func TestResolveKnownPrices(t *testing.T) {
	r := testResolver(nil)
	assert.Equal(t, TierStarter, r.Resolve(Subscription{PriceID: "price_starter", Status: StatusActive}))
	assert.Equal(t, TierGrowth, r.Resolve(Subscription{PriceID: "price_growth", Status: StatusActive}))
	assert.Equal(t, TierPremium, r.Resolve(Subscription{PriceID: "price_premium", Status: StatusActive}))
}

func TestResolveEmptyPriceNeverSubscribed(t *testing.T) {
	r := testResolver(nil)
	assert.Equal(t, LowestTier, r.Resolve(Subscription{}))
	assert.Equal(t, LowestTier, r.Resolve(Subscription{Status: StatusActive}))
}

func TestResolveUnknownPriceDegradesLoudly(t *testing.T) {
	var seen []string
	r := testResolver(func(priceID string) { seen = append(seen, priceID) })

	got := r.Resolve(Subscription{PriceID: "price_from_old_dashboard", Status: StatusActive})
	assert.Equal(t, LowestTier, got)
	assert.Equal(t, []string{"price_from_old_dashboard"}, seen)
}

// Non-payment revokes paid features even when the price ID still maps to a
// paid tier.
func TestResolveDegradedStatuses(t *testing.T) {
	r := testResolver(nil)
	for _, status := range []string{StatusPastDue, StatusCanceled, StatusUnpaid} {
		got := r.Resolve(Subscription{PriceID: "price_premium", Status: status})
		assert.Equalf(t, LowestTier, got, "status %s must degrade to lowest tier", status)
	}
}

func TestResolveActiveTrialGetsTopTier(t *testing.T) {
	r := testResolver(nil)
	future := r.now().Add(72 * time.Hour)
	past := r.now().Add(-time.Hour)

	assert.Equal(t, TierPremium, r.Resolve(Subscription{Status: StatusTrialing, TrialEndsAt: &future}))
	assert.Equal(t, LowestTier, r.Resolve(Subscription{Status: StatusTrialing, TrialEndsAt: &past}))
}

// Resolution is a pure function of its inputs: calling it twice with no
// state change yields the same tier.
func TestResolveIsIdempotent(t *testing.T) {
	r := testResolver(nil)
	sub := Subscription{PriceID: "price_growth", Status: StatusActive}
	assert.Equal(t, r.Resolve(sub), r.Resolve(sub))
}

func TestDaysLeftInTrial(t *testing.T) {
	r := testResolver(nil)

	assert.Equal(t, 0, r.DaysLeftInTrial(nil))

	ended := r.now().Add(-time.Minute)
	assert.Equal(t, 0, r.DaysLeftInTrial(&ended))

	exactly3 := r.now().Add(3 * 24 * time.Hour)
	assert.Equal(t, 3, r.DaysLeftInTrial(&exactly3))

	// Partial days round up: 2 days and 1 hour left reads as 3 days.
	partial := r.now().Add(2*24*time.Hour + time.Hour)
	assert.Equal(t, 3, r.DaysLeftInTrial(&partial))

	underOneDay := r.now().Add(5 * time.Hour)
	assert.Equal(t, 1, r.DaysLeftInTrial(&underOneDay))
}

// The injected clock decides trial membership, not the wall clock, so a
// fixed trial date resolves the same way whenever the test runs.
func TestWithNowPinsTrialClock(t *testing.T) {
	trialEnd := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	sub := Subscription{Status: StatusTrialing, TrialEndsAt: &trialEnd}

	before := NewResolver(nil, nil, WithNow(func() time.Time {
		return trialEnd.Add(-24 * time.Hour)
	}))
	assert.Equal(t, TierPremium, before.Resolve(sub))

	after := NewResolver(nil, nil, WithNow(func() time.Time {
		return trialEnd.Add(24 * time.Hour)
	}))
	assert.Equal(t, LowestTier, after.Resolve(sub))
}

func TestNewResolverIgnoresEmptyPriceKeys(t *testing.T) {
	r := NewResolver(map[string]Tier{"": TierPremium}, nil)
	assert.Equal(t, LowestTier, r.Resolve(Subscription{PriceID: "", Status: StatusActive}))
}
