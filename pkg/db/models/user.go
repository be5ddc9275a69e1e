package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the canonical identity entity plus the cumulative progression
// aggregate the ledger advances on every settlement. Counters are running
// totals and are only ever moved by atomic increments.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;type:text;not null;uniqueIndex:ux_users_email"`
	FirstName string    `gorm:"column:first_name;not null"`
	LastName  string    `gorm:"column:last_name;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`

	// Cumulative impact counters.
	ImpactPoints   int64 `gorm:"column:impact_points;not null;default:0"`
	CarbonSaved    int64 `gorm:"column:carbon_saved;not null;default:0"`
	WaterSaved     int64 `gorm:"column:water_saved;not null;default:0"`
	WastePrevented int64 `gorm:"column:waste_prevented;not null;default:0"`
	TotalOrders    int64 `gorm:"column:total_orders;not null;default:0"`
	TotalSpent     int64 `gorm:"column:total_spent_cents;not null;default:0"`

	// Tier is a monotonic function of ImpactPoints; TierChangedAt records the
	// latest promotion.
	Tier          string     `gorm:"column:tier;not null;default:'Seedling'"`
	TierChangedAt *time.Time `gorm:"column:tier_changed_at"`

	// Streak fields track consecutive purchase days in UTC calendar terms.
	CurrentStreak    int        `gorm:"column:current_streak;not null;default:0"`
	LongestStreak    int        `gorm:"column:longest_streak;not null;default:0"`
	LastPurchaseDate *time.Time `gorm:"column:last_purchase_date;type:date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
