package models

import (
	"time"

	"github.com/google/uuid"
)

// ConsolidatedOrder is the immutable per-provider fulfillment document produced
// by a consolidation run. It is never updated after creation.
type ConsolidatedOrder struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID uuid.UUID          `gorm:"column:provider_id;type:uuid;not null;index"`
	Provider   *User              `gorm:"foreignKey:ProviderID"`
	Items      []ConsolidatedItem `gorm:"foreignKey:ConsolidatedOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
