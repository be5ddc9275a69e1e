package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/pkg/enums"
)

// GroupChallenge is the at-most-one-active collective goal per group.
// Completion is a conditional flip of IsActive that only one writer can win.
type GroupChallenge struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	GroupID         uuid.UUID                   `gorm:"column:group_id;type:uuid;not null;index"`
	Name            string                      `gorm:"column:name;not null"`
	Description     *string                     `gorm:"column:description"`
	TargetMetric    enums.ChallengeTargetMetric `gorm:"column:target_metric;type:challenge_target_metric;not null"`
	TargetValue     int64                       `gorm:"column:target_value;not null"`
	CurrentProgress int64                       `gorm:"column:current_progress;not null;default:0"`
	RewardPoints    int64                       `gorm:"column:reward_points;not null"`
	Deadline        time.Time                   `gorm:"column:deadline;not null"`
	IsActive        bool                        `gorm:"column:is_active;not null;default:true"`
	CompletedAt     *time.Time                  `gorm:"column:completed_at"`
	ExpiredAt       *time.Time                  `gorm:"column:expired_at"`
	CreatedByUserID uuid.UUID                   `gorm:"column:created_by_user_id;type:uuid;not null"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
