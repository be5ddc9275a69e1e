package enums

import "fmt"

// GroupActivityType labels entries in the append-only group activity log.
type GroupActivityType string

const (
	ActivityMemberJoined       GroupActivityType = "member_joined"
	ActivityMemberLeft         GroupActivityType = "member_left"
	ActivityRoleChanged        GroupActivityType = "role_changed"
	ActivityPurchaseSettled    GroupActivityType = "purchase_settled"
	ActivityChallengeStarted   GroupActivityType = "challenge_started"
	ActivityChallengeCompleted GroupActivityType = "challenge_completed"
	ActivityChallengeExpired   GroupActivityType = "challenge_expired"
)

var validGroupActivityTypes = []GroupActivityType{
	ActivityMemberJoined,
	ActivityMemberLeft,
	ActivityRoleChanged,
	ActivityPurchaseSettled,
	ActivityChallengeStarted,
	ActivityChallengeCompleted,
	ActivityChallengeExpired,
}

// String implements fmt.Stringer.
func (a GroupActivityType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known GroupActivityType.
func (a GroupActivityType) IsValid() bool {
	for _, candidate := range validGroupActivityTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseGroupActivityType converts raw input into a GroupActivityType.
func ParseGroupActivityType(value string) (GroupActivityType, error) {
	for _, candidate := range validGroupActivityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group activity type %q", value)
}
