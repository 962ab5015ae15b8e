package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-app/ordena-backend/pkg/errors"
	"github.com/ordena-app/ordena-backend/pkg/outbox"
	"github.com/ordena-app/ordena-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockReserver decrements available stock when an order completes.
type StockReserver interface {
	TryDecrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error)
}

// ProductCatalog resolves products when lines are added to a draft.
type ProductCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// UserDirectory resolves the customer an order belongs to.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	List(ctx context.Context, input ListInput) (*OrderList, error)
	AddItem(ctx context.Context, input AddItemInput) (*OrderDTO, error)
	UpdateItemQty(ctx context.Context, input UpdateItemInput) (*OrderDTO, error)
	RemoveItem(ctx context.Context, input RemoveItemInput) (*OrderDTO, error)
	Delete(ctx context.Context, orderID uuid.UUID, actor Actor) error
	Submit(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	Approve(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	Reject(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	Decline(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	Complete(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
}

// CreateOrderInput opens a draft. CustomerID may be set by employees acting on
// behalf of a customer; customers always get their own draft.
type CreateOrderInput struct {
	CustomerID uuid.UUID
	Actor      Actor
}

// ListInput carries pagination plus the caller's identity for scoping.
type ListInput struct {
	Params  pagination.Params
	Filters ListFilters
	Actor   Actor
}

// AddItemInput adds a product line to a draft order.
type AddItemInput struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Qty       int
	Actor     Actor
}

// UpdateItemInput replaces the quantity of an existing line.
type UpdateItemInput struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Qty     int
	Actor   Actor
}

// RemoveItemInput removes a line from a draft order.
type RemoveItemInput struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Actor   Actor
}

// OrderLifecycleEvent is emitted whenever an order changes status.
type OrderLifecycleEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	Action     Action            `json:"action"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	stock   StockReserver
	catalog ProductCatalog
	users   UserDirectory
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, stock StockReserver, catalog ProductCatalog, users UserDirectory) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		stock:   stock,
		catalog: catalog,
		users:   users,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	customerID := input.CustomerID
	switch input.Actor.Role {
	case enums.UserRoleCustomer:
		if customerID != uuid.Nil && customerID != input.Actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers can only open their own orders")
		}
		customerID = input.Actor.UserID
	case enums.UserRoleEmployee:
		if customerID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot open orders")
	}

	customer, err := s.users.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if customer.Role != enums.UserRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders must belong to a customer user")
	}

	order, err := s.repo.CreateOrder(ctx, &models.Order{
		CustomerID: customerID,
		Status:     enums.OrderStatusDraft,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return FromModel(order), nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(order, actor); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) List(ctx context.Context, input ListInput) (*OrderList, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	filters := input.Filters
	switch input.Actor.Role {
	case enums.UserRoleCustomer:
		// Customers only ever see their own orders.
		own := input.Actor.UserID
		filters.CustomerID = &own
	case enums.UserRoleEmployee:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
	}

	list, err := s.repo.ListOrders(ctx, input.Params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*OrderDTO, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	var dto *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadDraftForEdit(ctx, repo, input.OrderID, input.Actor)
		if err != nil {
			return err
		}

		product, err := s.catalog.FindByID(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		// Adding the same product twice folds into the existing line. The
		// price snapshot from the first add is kept.
		existing, err := repo.FindItemByProduct(ctx, order.ID, product.ID)
		switch {
		case err == nil:
			if err := repo.UpdateOrderItemQty(ctx, existing.ID, existing.Qty+input.Qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line qty")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			_, err = repo.CreateOrderItem(ctx, &models.OrderItem{
				OrderID:   order.ID,
				ProductID: product.ID,
				Qty:       input.Qty,
				UnitPrice: product.BasePrice,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order line")
		}

		fresh, err := s.loadOrder(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		dto = FromModel(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) UpdateItemQty(ctx context.Context, input UpdateItemInput) (*OrderDTO, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	var dto *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadDraftForEdit(ctx, repo, input.OrderID, input.Actor)
		if err != nil {
			return err
		}

		item, err := s.loadOrderItem(ctx, repo, order.ID, input.ItemID)
		if err != nil {
			return err
		}
		if err := repo.UpdateOrderItemQty(ctx, item.ID, input.Qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line qty")
		}

		fresh, err := s.loadOrder(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		dto = FromModel(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) RemoveItem(ctx context.Context, input RemoveItemInput) (*OrderDTO, error) {
	var dto *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadDraftForEdit(ctx, repo, input.OrderID, input.Actor)
		if err != nil {
			return err
		}

		item, err := s.loadOrderItem(ctx, repo, order.ID, input.ItemID)
		if err != nil {
			return err
		}
		if err := repo.DeleteOrderItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order line")
		}

		fresh, err := s.loadOrder(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		dto = FromModel(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) Delete(ctx context.Context, orderID uuid.UUID, actor Actor) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := s.authorizeOwnerOrEmployee(order, actor); err != nil {
			return err
		}
		// Administrative removal, not a lifecycle transition. Terminal orders
		// stay on the books.
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "terminal orders cannot be deleted")
		}
		if err := repo.DeleteOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return nil
	})
}

func (s *service) Submit(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	return s.applyTransition(ctx, orderID, actor, ActionSubmit)
}

func (s *service) Approve(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	return s.applyTransition(ctx, orderID, actor, ActionApprove)
}

func (s *service) Reject(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	return s.applyTransition(ctx, orderID, actor, ActionReject)
}

func (s *service) Decline(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	return s.applyTransition(ctx, orderID, actor, ActionDecline)
}

func (s *service) Complete(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	if err := requireEmployee(actor); err != nil {
		return nil, err
	}

	var dto *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusValidated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only validated orders can be completed")
		}

		// Stock is checked and decremented atomically per line. Any shortfall
		// rolls back the whole transaction.
		var short []uuid.UUID
		for i := range order.Items {
			item := &order.Items[i]
			ok, err := s.stock.TryDecrement(ctx, tx, item.ProductID, item.Qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				short = append(short, item.ProductID)
			}
		}
		if len(short) > 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for order").
				WithDetails(map[string]any{"product_ids": short})
		}

		claimed, err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusValidated, enums.OrderStatusCompleted)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed state mid-flight")
		}
		order.Status = enums.OrderStatusCompleted

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: OrderLifecycleEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				Action:     ActionComplete,
				FromStatus: enums.OrderStatusValidated,
				ToStatus:   enums.OrderStatusCompleted,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		dto = FromModel(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) applyTransition(ctx context.Context, orderID uuid.UUID, actor Actor, action Action) (*OrderDTO, error) {
	tr, err := resolveTransition(action)
	if err != nil {
		return nil, err
	}

	var dto *OrderDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := s.authorizeAction(order, actor, action); err != nil {
			return err
		}
		if !tr.allows(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot %s an order in status %s", action, order.Status))
		}
		if action == ActionSubmit && len(order.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot submit an empty order")
		}

		fromStatus := order.Status
		claimed, err := repo.UpdateOrderStatus(ctx, order.ID, fromStatus, tr.To)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed state mid-flight")
		}
		order.Status = tr.To

		event := outbox.DomainEvent{
			EventType:     eventForAction(action),
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: OrderLifecycleEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				Action:     action,
				FromStatus: fromStatus,
				ToStatus:   tr.To,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		dto = FromModel(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadOrderItem(ctx context.Context, repo Repository, orderID, itemID uuid.UUID) (*models.OrderItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := repo.FindOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order line")
	}
	if item.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "line does not belong to order")
	}
	return item, nil
}

// loadDraftForEdit loads an order and enforces that the caller may mutate it.
// Drafts are the only editable state.
func (s *service) loadDraftForEdit(ctx context.Context, repo Repository, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwnerOrEmployee(order, actor); err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only draft orders can be edited")
	}
	return order, nil
}

func (s *service) authorizeRead(order *models.Order, actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	switch actor.Role {
	case enums.UserRoleEmployee:
		return nil
	case enums.UserRoleCustomer:
		if order.CustomerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot view orders")
	}
}

func (s *service) authorizeOwnerOrEmployee(order *models.Order, actor Actor) error {
	return s.authorizeRead(order, actor)
}

func (s *service) authorizeAction(order *models.Order, actor Actor, action Action) error {
	if action == ActionSubmit {
		return s.authorizeOwningCustomer(order, actor)
	}
	return requireEmployee(actor)
}

// Submit is reserved for the customer who owns the draft. Employees
// review and decide orders but do not submit on a customer's behalf.
func (s *service) authorizeOwningCustomer(order *models.Order, actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.UserRoleCustomer || order.CustomerID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning customer can submit an order")
	}
	return nil
}

func requireEmployee(actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.UserRoleEmployee {
		return pkgerrors.New(pkgerrors.CodeForbidden, "employee role required")
	}
	return nil
}
