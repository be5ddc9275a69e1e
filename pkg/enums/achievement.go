package enums

import "fmt"

// AchievementKind identifies a first-time user milestone. Each kind is stamped
// at most once per user.
type AchievementKind string

const (
	AchievementFirstPurchase   AchievementKind = "first_purchase"
	AchievementFirstEcoProduct AchievementKind = "first_eco_product"
	AchievementTierPromotion   AchievementKind = "tier_promotion"
)

var validAchievementKinds = []AchievementKind{
	AchievementFirstPurchase,
	AchievementFirstEcoProduct,
	AchievementTierPromotion,
}

// String implements fmt.Stringer.
func (a AchievementKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AchievementKind.
func (a AchievementKind) IsValid() bool {
	for _, candidate := range validAchievementKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAchievementKind converts raw input into an AchievementKind.
func ParseAchievementKind(value string) (AchievementKind, error) {
	for _, candidate := range validAchievementKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid achievement kind %q", value)
}
