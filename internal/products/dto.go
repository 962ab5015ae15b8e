package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
)

// ProductDTO is the transport shape for catalog reads.
type ProductDTO struct {
	ID         uuid.UUID       `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	BasePrice  decimal.Decimal `json:"base_price"`
	Stock      int             `json:"stock"`
	ProviderID uuid.UUID       `json:"provider_id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CreateProductInput carries the fields accepted when registering a product.
type CreateProductInput struct {
	SKU        string
	Name       string
	BasePrice  decimal.Decimal
	Stock      int
	ProviderID uuid.UUID
}

// UpdateProductInput carries the mutable product fields. Nil means keep current.
type UpdateProductInput struct {
	Name      *string
	BasePrice *decimal.Decimal
	Stock     *int
}

// ProductList wraps a page of products plus the next page cursor.
type ProductList struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// ListFilters describe the inputs supported by the product list.
type ListFilters struct {
	ProviderID *uuid.UUID
	Query      string
}

func FromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:         p.ID,
		SKU:        p.SKU,
		Name:       p.Name,
		BasePrice:  p.BasePrice,
		Stock:      p.Stock,
		ProviderID: p.ProviderID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
