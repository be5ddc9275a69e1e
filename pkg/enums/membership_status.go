package enums

import "fmt"

// MembershipStatus tracks the lifecycle of a group membership.
type MembershipStatus string

const (
	MembershipStatusPending MembershipStatus = "pending"
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusRemoved MembershipStatus = "removed"
)

var validMembershipStatuses = []MembershipStatus{
	MembershipStatusPending,
	MembershipStatusActive,
	MembershipStatusRemoved,
}

// String implements fmt.Stringer.
func (s MembershipStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known MembershipStatus.
func (s MembershipStatus) IsValid() bool {
	for _, candidate := range validMembershipStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMembershipStatus converts raw input into a MembershipStatus.
func ParseMembershipStatus(value string) (MembershipStatus, error) {
	for _, candidate := range validMembershipStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership status %q", value)
}
