package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/pkg/enums"
)

// GroupMembership links a user with a group and carries their role, status
// and per-group contribution score.
type GroupMembership struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	GroupID            uuid.UUID              `gorm:"column:group_id;type:uuid;not null;uniqueIndex:ux_group_memberships_group_user"`
	UserID             uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_group_memberships_group_user;index"`
	Role               enums.MemberRole       `gorm:"column:role;type:member_role;not null"`
	Status             enums.MembershipStatus `gorm:"column:status;type:membership_status;not null;default:'active'"`
	ContributionPoints int64                  `gorm:"column:contribution_points;not null;default:0"`
	JoinedAt           time.Time              `gorm:"column:joined_at;not null"`
	LeftAt             *time.Time             `gorm:"column:left_at"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
