package enums

import "fmt"

// OrderStatus is the lifecycle state of a customer order.
type OrderStatus string

const (
	OrderStatusDraft             OrderStatus = "draft"
	OrderStatusPendingValidation OrderStatus = "pending_validation"
	OrderStatusValidated         OrderStatus = "validated"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusDeclined          OrderStatus = "declined"
	OrderStatusConsolidated      OrderStatus = "consolidated"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusPendingValidation,
	OrderStatusValidated,
	OrderStatusCompleted,
	OrderStatusDeclined,
	OrderStatusConsolidated,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no action can move an order out of the status.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCompleted, OrderStatusDeclined, OrderStatusConsolidated:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
