package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasFeature(t *testing.T) {
	assert.False(t, HasFeature(TierFree, FeatureExpenseTracking))
	assert.True(t, HasFeature(TierStarter, FeatureExpenseTracking))
	assert.True(t, HasFeature(TierGrowth, FeatureMarketingTools))
	assert.False(t, HasFeature(TierGrowth, FeatureAds))
	assert.True(t, HasFeature(TierPremium, FeatureAds))
	assert.True(t, HasFeature(TierPremium, FeatureWhiteLabel))
}

// Exhaustive tier×feature matrix: once a feature appears at some tier it
// must stay present at every higher tier, and hasFeature must be stable
// across repeated calls with identical inputs.
func TestHasFeatureMatrix(t *testing.T) {
	for _, f := range Features() {
		licensed := false
		for _, tier := range Tiers() {
			got := HasFeature(tier, f)
			assert.Equal(t, got, HasFeature(tier, f), "hasFeature must be deterministic")
			if licensed {
				assert.Truef(t, got, "feature %s disappeared at tier %s", f, tier)
			}
			licensed = licensed || got
		}
		assert.Truef(t, licensed, "feature %s is licensed by no tier", f)
	}
}

func TestRequiredTierFor(t *testing.T) {
	tier, ok := RequiredTierFor(FeatureAds)
	require.True(t, ok)
	assert.Equal(t, TierPremium, tier)

	tier, ok = RequiredTierFor(FeatureExpenseTracking)
	require.True(t, ok)
	assert.Equal(t, TierStarter, tier)

	tier, ok = RequiredTierFor(FeatureMarketingTools)
	require.True(t, ok)
	assert.Equal(t, TierGrowth, tier)

	_, ok = RequiredTierFor(Feature("teleportation"))
	assert.False(t, ok)
}

// The required tier is by definition the lowest tier passing the gate.
func TestRequiredTierForAgreesWithGate(t *testing.T) {
	for _, f := range Features() {
		required, ok := RequiredTierFor(f)
		require.True(t, ok)
		for _, tier := range Tiers() {
			assert.Equal(t, tier.AtLeast(required), HasFeature(tier, f))
		}
	}
}
