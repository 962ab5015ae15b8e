package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/enums"
)

// ProductSummary is the catalog snapshot carried on an order line so list
// screens can render without a second lookup.
type ProductSummary struct {
	ID        uuid.UUID       `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// OrderItemDTO is the transport shape of a single order line.
type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Product   *ProductSummary `json:"product,omitempty"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDTO is the transport shape of an order with its derived total.
type OrderDTO struct {
	ID         uuid.UUID         `json:"id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	Status     enums.OrderStatus `json:"status"`
	Items      []OrderItemDTO    `json:"items"`
	Total      decimal.Decimal   `json:"total"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ListFilters describe the inputs supported by the order list.
type ListFilters struct {
	Status     *enums.OrderStatus
	CustomerID *uuid.UUID
}

func productSummaryFromModel(product *models.Product) *ProductSummary {
	if product == nil {
		return nil
	}
	return &ProductSummary{
		ID:        product.ID,
		SKU:       product.SKU,
		Name:      product.Name,
		BasePrice: product.BasePrice,
	}
}

func itemFromModel(item *models.OrderItem) OrderItemDTO {
	return OrderItemDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Product:   productSummaryFromModel(item.Product),
		Qty:       item.Qty,
		UnitPrice: item.UnitPrice,
		LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))),
	}
}

// FromModel converts an order row into its transport shape. The total is
// always derived from the lines, never stored.
func FromModel(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Items:      make([]OrderItemDTO, 0, len(order.Items)),
		Total:      decimal.Zero,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	for i := range order.Items {
		item := itemFromModel(&order.Items[i])
		dto.Items = append(dto.Items, item)
		dto.Total = dto.Total.Add(item.LineTotal)
	}
	return dto
}
