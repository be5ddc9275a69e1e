package enums

import "fmt"

// ChallengeTargetMetric selects which settlement field advances a challenge.
type ChallengeTargetMetric string

const (
	ChallengeTargetImpactPoints   ChallengeTargetMetric = "impact_points"
	ChallengeTargetCarbonSaved    ChallengeTargetMetric = "carbon_saved"
	ChallengeTargetGroupPurchases ChallengeTargetMetric = "group_purchases"
)

var validChallengeTargetMetrics = []ChallengeTargetMetric{
	ChallengeTargetImpactPoints,
	ChallengeTargetCarbonSaved,
	ChallengeTargetGroupPurchases,
}

// String implements fmt.Stringer.
func (m ChallengeTargetMetric) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ChallengeTargetMetric.
func (m ChallengeTargetMetric) IsValid() bool {
	for _, candidate := range validChallengeTargetMetrics {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseChallengeTargetMetric converts raw input into a ChallengeTargetMetric.
func ParseChallengeTargetMetric(value string) (ChallengeTargetMetric, error) {
	for _, candidate := range validChallengeTargetMetrics {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid challenge target metric %q", value)
}
