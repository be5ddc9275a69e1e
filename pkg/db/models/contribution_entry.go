package models

import (
	"time"

	"github.com/google/uuid"
)

// ContributionEntry is the group propagator's idempotency guard, one row per
// (group, order), mirroring ProgressionEntry on the user side.
type ContributionEntry struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	GroupID            uuid.UUID `gorm:"column:group_id;type:uuid;not null;uniqueIndex:ux_contribution_entries_group_order"`
	OrderID            uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_contribution_entries_group_order"`
	UserID             uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	ContributionPoints int64     `gorm:"column:contribution_points;not null"`
	AppliedAt          time.Time `gorm:"column:applied_at;autoCreateTime"`
}
