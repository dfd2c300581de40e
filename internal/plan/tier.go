package plan

// Tier is a named subscription level. Tiers are totally ordered by
// capability: every tier's feature set is a superset of the tier below it.
type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierGrowth  Tier = "growth"
	TierPremium Tier = "premium"
)

// tierRank orders tiers from least to most capable.
var tierRank = map[Tier]int{
	TierFree:    0,
	TierStarter: 1,
	TierGrowth:  2,
	TierPremium: 3,
}

// Tiers lists all tiers in ascending capability order.
func Tiers() []Tier {
	return []Tier{TierFree, TierStarter, TierGrowth, TierPremium}
}

// Valid reports whether t is a recognized tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Rank returns the tier's position in the capability ordering. Unknown
// tiers rank below free.
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether t is the same tier as other or a higher one.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// LowestTier is the tier every organization falls back to when its plan
// cannot be determined or its subscription has lapsed.
const LowestTier = TierFree
