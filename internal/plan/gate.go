package plan

// HasFeature reports whether the tier licenses the feature. Pure lookup,
// no I/O, safe to call on every request.
func HasFeature(t Tier, f Feature) bool {
	for _, have := range Catalog(t).Features {
		if have == f {
			return true
		}
	}
	return false
}

// RequiredTierFor returns the lowest tier that licenses the feature, or
// false if no tier does.
func RequiredTierFor(f Feature) (Tier, bool) {
	for _, t := range Tiers() {
		if HasFeature(t, f) {
			return t, true
		}
	}
	return "", false
}
