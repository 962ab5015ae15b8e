package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a provider-owned catalog listing.
type Product struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU        string          `gorm:"column:sku;not null;uniqueIndex"`
	Name       string          `gorm:"column:name;not null"`
	BasePrice  decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null"`
	Stock      int             `gorm:"column:stock;not null;default:0"`
	ProviderID uuid.UUID       `gorm:"column:provider_id;type:uuid;not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
