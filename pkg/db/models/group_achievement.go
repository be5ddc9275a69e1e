package models

import (
	"time"

	"github.com/google/uuid"
)

// GroupAchievement records one completed challenge. The unique index on the
// challenge id backs the exactly-once completion guarantee.
type GroupAchievement struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	GroupID          uuid.UUID `gorm:"column:group_id;type:uuid;not null;index"`
	ChallengeID      uuid.UUID `gorm:"column:challenge_id;type:uuid;not null;uniqueIndex:ux_group_achievements_challenge"`
	Title            string    `gorm:"column:title;not null"`
	PointsAwarded    int64     `gorm:"column:points_awarded;not null"`
	ParticipantCount int       `gorm:"column:participant_count;not null"`
	EarnedAt         time.Time `gorm:"column:earned_at;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}
