package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressionEntry is the user ledger's idempotency guard: one row per
// (user, order). Inserting it first means a replay hits the unique index and
// the consumer no-ops instead of double-crediting.
type ProgressionEntry struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_progression_entries_user_order"`
	OrderID      uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_progression_entries_user_order"`
	ImpactPoints int64     `gorm:"column:impact_points;not null"`
	AppliedAt    time.Time `gorm:"column:applied_at;autoCreateTime"`
}
