package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/pkg/enums"
)

// UserAchievement is a first-time stamp. The unique index makes repeated
// stamping of the same kind a no-op at the storage layer.
type UserAchievement struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID             `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_achievements_user_kind"`
	Kind      enums.AchievementKind `gorm:"column:kind;type:achievement_kind;not null;uniqueIndex:ux_user_achievements_user_kind"`
	EarnedAt  time.Time             `gorm:"column:earned_at;not null"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
