package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateUser      OutboxAggregateType = "user"
	AggregateGroup     OutboxAggregateType = "group"
	AggregateChallenge OutboxAggregateType = "challenge"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateUser,
	AggregateGroup,
	AggregateChallenge,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderSettled       OutboxEventType = "order_settled"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventChallengeStarted   OutboxEventType = "challenge_started"
	EventChallengeCompleted OutboxEventType = "challenge_completed"
	EventChallengeExpired   OutboxEventType = "challenge_expired"
	EventGroupMemberJoined  OutboxEventType = "group_member_joined"
	EventGroupMemberLeft    OutboxEventType = "group_member_left"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderSettled,
	EventOrderStatusChanged,
	EventChallengeStarted,
	EventChallengeCompleted,
	EventChallengeExpired,
	EventGroupMemberJoined,
	EventGroupMemberLeft,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
