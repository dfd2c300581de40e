package plan

// Feature is a named capability gated behind one or more tiers.
type Feature string

const (
	FeatureExpenseTracking   Feature = "expense_tracking"
	FeatureMarketingTools    Feature = "marketing_tools"
	FeaturePayroll           Feature = "payroll"
	FeatureAdvancedAnalytics Feature = "advanced_analytics"
	FeatureAds               Feature = "ads"
	FeatureAIOptimization    Feature = "ai_optimization"
	FeatureWhiteLabel        Feature = "white_label"
)

// Features lists every known feature.
func Features() []Feature {
	return []Feature{
		FeatureExpenseTracking,
		FeatureMarketingTools,
		FeaturePayroll,
		FeatureAdvancedAnalytics,
		FeatureAds,
		FeatureAIOptimization,
		FeatureWhiteLabel,
	}
}

// UsageMetric identifies a metered resource counted against a tier limit.
type UsageMetric string

const (
	MetricBookings    UsageMetric = "bookings"
	MetricTeamMembers UsageMetric = "team_members"
)
