package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/pkg/enums"
)

// OrderStatusEvent is one entry in an order's append-only status history.
type OrderStatusEvent struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus *enums.OrderStatus `gorm:"column:from_status;type:order_status"`
	ToStatus   enums.OrderStatus  `gorm:"column:to_status;type:order_status;not null"`
	Note       *string            `gorm:"column:note"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
