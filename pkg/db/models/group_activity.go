package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/pkg/enums"
)

// GroupActivity is one entry in a group's append-only audit trail. The engine
// never truncates the log; read layers window it with cursors.
type GroupActivity struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	GroupID   uuid.UUID               `gorm:"column:group_id;type:uuid;not null;index:idx_group_activities_group_created"`
	UserID    *uuid.UUID              `gorm:"column:user_id;type:uuid"`
	Kind      enums.GroupActivityType `gorm:"column:kind;type:activity_kind;not null"`
	Message   string                  `gorm:"column:message;not null"`
	Metadata  json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime;index:idx_group_activities_group_created"`
}
