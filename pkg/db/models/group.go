package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is the collective aggregate. Impact counters mirror the user's and
// move only through atomic increments during propagation.
type Group struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	MaxMembers  int       `gorm:"column:max_members;not null;default:50"`
	MemberCount int       `gorm:"column:member_count;not null;default:0"`

	ImpactPoints   int64 `gorm:"column:impact_points;not null;default:0"`
	CarbonSaved    int64 `gorm:"column:carbon_saved;not null;default:0"`
	WaterSaved     int64 `gorm:"column:water_saved;not null;default:0"`
	WastePrevented int64 `gorm:"column:waste_prevented;not null;default:0"`
	TotalOrders    int64 `gorm:"column:total_orders;not null;default:0"`
	TotalSpent     int64 `gorm:"column:total_spent_cents;not null;default:0"`

	Tier string `gorm:"column:tier;not null;default:'Eco Beginners'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
