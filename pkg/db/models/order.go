package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/pkg/enums"
)

// Order is the immutable settlement record for one checkout. Only status moves
// after creation, and every move is appended to order_status_events.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber string            `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`

	SubtotalCents int64 `gorm:"column:subtotal_cents;not null"`
	TaxCents      int64 `gorm:"column:tax_cents;not null"`
	ShippingCents int64 `gorm:"column:shipping_cents;not null"`
	DiscountCents int64 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int64 `gorm:"column:total_cents;not null"`

	// Order-level impact aggregate, the sum of the line snapshots.
	CarbonSaved    int64 `gorm:"column:carbon_saved;not null;default:0"`
	WaterSaved     int64 `gorm:"column:water_saved;not null;default:0"`
	WastePrevented int64 `gorm:"column:waste_prevented;not null;default:0"`
	ImpactPoints   int64 `gorm:"column:impact_points;not null;default:0"`

	ShippingAddress *string `gorm:"column:shipping_address"`
	BillingAddress  *string `gorm:"column:billing_address"`
	PaymentMethod   *string `gorm:"column:payment_method"`

	Items        []OrderLineItem    `gorm:"foreignKey:OrderID"`
	StatusEvents []OrderStatusEvent `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
