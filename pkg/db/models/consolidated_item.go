package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsolidatedItem aggregates one product's demand across all orders consumed
// by a consolidation run.
type ConsolidatedItem struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConsolidatedOrderID uuid.UUID       `gorm:"column:consolidated_order_id;type:uuid;not null;index"`
	ProductID           uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Product             *Product        `gorm:"foreignKey:ProductID"`
	TotalQty            int             `gorm:"column:total_qty;not null"`
	UnitPrice           decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal           decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
}
