package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem captures the snapshot of each item within an order, including
// the product's eco tier at purchase time. Later eco-score changes never touch
// settled lines.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	PartnerID      uuid.UUID `gorm:"column:partner_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64     `gorm:"column:total_cents;not null"`

	EcoScore       int    `gorm:"column:eco_score;not null"`
	EcoTier        string `gorm:"column:eco_tier;not null"`
	CarbonSaved    int64  `gorm:"column:carbon_saved;not null;default:0"`
	WaterSaved     int64  `gorm:"column:water_saved;not null;default:0"`
	WastePrevented int64  `gorm:"column:waste_prevented;not null;default:0"`
	ImpactPoints   int64  `gorm:"column:impact_points;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
