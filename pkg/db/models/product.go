package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry carrying its sustainability rating. The impact
// snapshot is computed once at creation from sourced insights (or zero
// fallbacks) and is deliberately immune to later insight refreshes.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	PartnerID   uuid.UUID `gorm:"column:partner_id;type:uuid;not null"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`

	// EcoScore is the 0-1000 sustainability rating; EcoTier is derived from it
	// via the product threshold table whenever the score changes.
	EcoScore int    `gorm:"column:eco_score;not null;default:0"`
	EcoTier  string `gorm:"column:eco_tier;not null;default:'Standard'"`

	// Per-unit impact snapshot. Carbon in grams, water in milliliters, waste
	// in grams; points derived from the eco score.
	CarbonSavedPerUnit    int64 `gorm:"column:carbon_saved_per_unit;not null;default:0"`
	WaterSavedPerUnit     int64 `gorm:"column:water_saved_per_unit;not null;default:0"`
	WastePreventedPerUnit int64 `gorm:"column:waste_prevented_per_unit;not null;default:0"`

	// Lifetime metrics advanced by settlement.
	TotalUnitsSold    int64 `gorm:"column:total_units_sold;not null;default:0"`
	TotalImpactPoints int64 `gorm:"column:total_impact_points;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
