package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks sellable stock per product. AvailableQty must never go
// negative; all mutations are conditional decrements at the storage layer.
type InventoryItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
