package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/pkg/enums"
)

// ImpactTotals carries the environmental aggregate of one order or line.
// Carbon and waste are grams, water is milliliters.
type ImpactTotals struct {
	CarbonSaved    int64 `json:"carbon_saved"`
	WaterSaved     int64 `json:"water_saved"`
	WastePrevented int64 `json:"waste_prevented"`
	ImpactPoints   int64 `json:"impact_points"`
}

// LineImpact is the per-line slice of a settlement event.
type LineImpact struct {
	ProductID uuid.UUID    `json:"product_id"`
	PartnerID uuid.UUID    `json:"partner_id"`
	Quantity  int          `json:"quantity"`
	EcoScore  int          `json:"eco_score"`
	EcoTier   string       `json:"eco_tier"`
	Impact    ImpactTotals `json:"impact"`
}

// SettlementEvent is the single event emitted per settled order. The order id
// is the idempotency key every downstream consumer guards on.
type SettlementEvent struct {
	OrderID     uuid.UUID    `json:"order_id"`
	OrderNumber string       `json:"order_number"`
	UserID      uuid.UUID    `json:"user_id"`
	LineImpacts []LineImpact `json:"line_impacts"`
	TotalImpact ImpactTotals `json:"total_impact"`
	TotalCents  int64        `json:"total_cents"`
	SettledAt   time.Time    `json:"settled_at"`
}

// OrderStatusChangedEvent mirrors one appended status history entry.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// ChallengeStartedEvent is emitted when a group challenge is created.
type ChallengeStartedEvent struct {
	ChallengeID  uuid.UUID                   `json:"challenge_id"`
	GroupID      uuid.UUID                   `json:"group_id"`
	Name         string                      `json:"name"`
	TargetMetric enums.ChallengeTargetMetric `json:"target_metric"`
	TargetValue  int64                       `json:"target_value"`
	Deadline     time.Time                   `json:"deadline"`
}

// ChallengeCompletedEvent is emitted exactly once per completed challenge.
type ChallengeCompletedEvent struct {
	ChallengeID      uuid.UUID `json:"challenge_id"`
	GroupID          uuid.UUID `json:"group_id"`
	Name             string    `json:"name"`
	RewardPoints     int64     `json:"reward_points"`
	ParticipantCount int       `json:"participant_count"`
	CompletedAt      time.Time `json:"completed_at"`
}

// ChallengeExpiredEvent is emitted when the expiry job deactivates a challenge.
type ChallengeExpiredEvent struct {
	ChallengeID     uuid.UUID `json:"challenge_id"`
	GroupID         uuid.UUID `json:"group_id"`
	Name            string    `json:"name"`
	CurrentProgress int64     `json:"current_progress"`
	TargetValue     int64     `json:"target_value"`
	ExpiredAt       time.Time `json:"expired_at"`
}

// GroupMemberJoinedEvent announces a new active membership.
type GroupMemberJoinedEvent struct {
	GroupID  uuid.UUID        `json:"group_id"`
	UserID   uuid.UUID        `json:"user_id"`
	Role     enums.MemberRole `json:"role"`
	JoinedAt time.Time        `json:"joined_at"`
}

// GroupMemberLeftEvent announces a membership ending.
type GroupMemberLeftEvent struct {
	GroupID uuid.UUID `json:"group_id"`
	UserID  uuid.UUID `json:"user_id"`
	LeftAt  time.Time `json:"left_at"`
}
