package plan

// Unlimited is the sentinel limit value for tiers with no cap.
const Unlimited = -1

// Limits holds the numeric usage caps for a tier.
type Limits struct {
	BookingsPerMonth int `json:"bookings_per_month"`
	TeamMembers      int `json:"team_members"`
}

// Entry describes one tier in the catalog: the features it licenses and
// the usage limits it enforces.
type Entry struct {
	Tier     Tier      `json:"tier"`
	Features []Feature `json:"features"`
	Limits   Limits    `json:"limits"`
}

// featureAdditions lists the features each tier adds on top of the tier
// below it. The catalog is built by accumulating these, so the
// superset-chain invariant (higher tier licenses everything a lower tier
// does) holds by construction and cannot drift per-table.
var featureAdditions = map[Tier][]Feature{
	TierFree:    {},
	TierStarter: {FeatureExpenseTracking},
	TierGrowth:  {FeatureMarketingTools, FeaturePayroll, FeatureAdvancedAnalytics},
	TierPremium: {FeatureAds, FeatureAIOptimization, FeatureWhiteLabel},
}

var tierLimits = map[Tier]Limits{
	TierFree:    {BookingsPerMonth: 20, TeamMembers: 2},
	TierStarter: {BookingsPerMonth: 50, TeamMembers: 5},
	TierGrowth:  {BookingsPerMonth: 200, TeamMembers: 15},
	TierPremium: {BookingsPerMonth: Unlimited, TeamMembers: Unlimited},
}

// catalog is immutable static data, assembled once at init. The gating
// layer holds no other in-process state shared across requests.
var catalog = buildCatalog()

func buildCatalog() map[Tier]Entry {
	c := make(map[Tier]Entry, len(tierRank))
	var accumulated []Feature
	for _, t := range Tiers() {
		accumulated = append(accumulated, featureAdditions[t]...)
		features := make([]Feature, len(accumulated))
		copy(features, accumulated)
		c[t] = Entry{
			Tier:     t,
			Features: features,
			Limits:   tierLimits[t],
		}
	}
	return c
}

// Catalog returns the entry for a tier. Unknown tiers get the lowest
// tier's entry so a bad value can never widen access.
func Catalog(t Tier) Entry {
	if e, ok := catalog[t]; ok {
		return e
	}
	return catalog[LowestTier]
}

// LimitFor returns the cap for a metric on the given tier.
func LimitFor(t Tier, metric UsageMetric) int {
	limits := Catalog(t).Limits
	switch metric {
	case MetricBookings:
		return limits.BookingsPerMonth
	case MetricTeamMembers:
		return limits.TeamMembers
	default:
		return 0
	}
}
