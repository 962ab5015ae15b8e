package consolidation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
)

// ProductSummary is the catalog snapshot rendered on provider fulfillment
// screens alongside each aggregated line.
type ProductSummary struct {
	ID   uuid.UUID `json:"id"`
	SKU  string    `json:"sku"`
	Name string    `json:"name"`
}

// ProviderSummary identifies the supplier a fulfillment document is addressed to.
type ProviderSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// ConsolidatedItemDTO is one aggregated product line addressed to a provider.
type ConsolidatedItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Product   *ProductSummary `json:"product,omitempty"`
	TotalQty  int             `json:"total_qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// ConsolidatedOrderDTO is the immutable per-provider result of a sweep.
type ConsolidatedOrderDTO struct {
	ID         uuid.UUID             `json:"id"`
	ProviderID uuid.UUID             `json:"provider_id"`
	Provider   *ProviderSummary      `json:"provider,omitempty"`
	Items      []ConsolidatedItemDTO `json:"items"`
	Total      decimal.Decimal       `json:"total"`
	CreatedAt  time.Time             `json:"created_at"`
}

// RunResult summarizes a successful consolidation sweep.
type RunResult struct {
	ConsolidatedOrders []ConsolidatedOrderDTO `json:"consolidated_orders"`
	OrdersConsumed     int                    `json:"orders_consumed"`
}

// ConsolidatedOrderList wraps a page of consolidated orders plus the next cursor.
type ConsolidatedOrderList struct {
	ConsolidatedOrders []ConsolidatedOrderDTO `json:"consolidated_orders"`
	NextCursor         string                 `json:"next_cursor,omitempty"`
}

// ListFilters describe the inputs supported by the consolidated order list.
type ListFilters struct {
	ProviderID *uuid.UUID
}

// FromModel converts a consolidated order row into its transport shape.
func FromModel(order *models.ConsolidatedOrder) *ConsolidatedOrderDTO {
	if order == nil {
		return nil
	}
	dto := &ConsolidatedOrderDTO{
		ID:         order.ID,
		ProviderID: order.ProviderID,
		Items:      make([]ConsolidatedItemDTO, 0, len(order.Items)),
		Total:      decimal.Zero,
		CreatedAt:  order.CreatedAt,
	}
	if order.Provider != nil {
		dto.Provider = &ProviderSummary{
			ID:    order.Provider.ID,
			Name:  order.Provider.Name,
			Email: order.Provider.Email,
		}
	}
	for i := range order.Items {
		item := &order.Items[i]
		line := ConsolidatedItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			TotalQty:  item.TotalQty,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
		if item.Product != nil {
			line.Product = &ProductSummary{
				ID:   item.Product.ID,
				SKU:  item.Product.SKU,
				Name: item.Product.Name,
			}
		}
		dto.Items = append(dto.Items, line)
		dto.Total = dto.Total.Add(item.LineTotal)
	}
	return dto
}
