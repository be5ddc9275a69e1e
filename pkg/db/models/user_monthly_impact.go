package models

import (
	"time"

	"github.com/google/uuid"
)

// UserMonthlyImpact is one month-keyed bucket of a user's point gains.
// Month is "YYYY-MM" from the settlement timestamp in UTC.
type UserMonthlyImpact struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_monthly_impact_user_month"`
	Month        string    `gorm:"column:month;not null;uniqueIndex:ux_user_monthly_impact_user_month"`
	ImpactPoints int64     `gorm:"column:impact_points;not null;default:0"`
	OrderCount   int64     `gorm:"column:order_count;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
