package consolidation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-app/ordena-backend/pkg/errors"
	"github.com/ordena-app/ordena-backend/pkg/metrics"
	"github.com/ordena-app/ordena-backend/pkg/outbox"
	"github.com/ordena-app/ordena-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// RunInput identifies who triggered a sweep and through which surface.
type RunInput struct {
	Actor   Actor
	Trigger string
}

// ListInput carries pagination plus the caller's identity for scoping.
type ListInput struct {
	Params  pagination.Params
	Filters ListFilters
	Actor   Actor
}

// ConsolidationRunEvent is emitted once per consolidated order created by a sweep.
type ConsolidationRunEvent struct {
	ConsolidatedOrderID uuid.UUID   `json:"consolidated_order_id"`
	ProviderID          uuid.UUID   `json:"provider_id"`
	SourceOrderIDs      []uuid.UUID `json:"source_order_ids"`
	ItemCount           int         `json:"item_count"`
}

// Service defines the consolidation operations.
type Service interface {
	// Run sweeps every validated order into per-provider consolidated orders.
	Run(ctx context.Context, input RunInput) (*RunResult, error)
	Get(ctx context.Context, id uuid.UUID, actor Actor) (*ConsolidatedOrderDTO, error)
	List(ctx context.Context, input ListInput) (*ConsolidatedOrderList, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	stats  *metrics.ConsolidationMetrics
}

// NewService builds a consolidation service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, stats *metrics.ConsolidationMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("consolidation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, stats: stats}, nil
}

// groupKey addresses one aggregated line during a sweep.
type groupKey struct {
	providerID uuid.UUID
	productID  uuid.UUID
}

type groupAccumulator struct {
	totalQty int
	// unitPrice tracks the snapshot from the most recently created source
	// order seen so far.
	unitPrice      decimal.Decimal
	priceSeenAt    time.Time
	sourceOrderIDs map[uuid.UUID]struct{}
}

func (s *service) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	if err := requireEmployee(input.Actor); err != nil {
		return nil, err
	}
	trigger := input.Trigger
	if trigger == "" {
		trigger = "api"
	}

	started := time.Now()
	result, err := s.run(ctx, input)
	if err != nil {
		s.stats.ObserveDuration("failure", time.Since(started))
		s.stats.IncFailure(trigger)
		return nil, err
	}
	s.stats.ObserveDuration("success", time.Since(started))
	s.stats.IncSuccess(trigger)
	s.stats.AddOrdersConsumed(result.OrdersConsumed)
	return result, nil
}

func (s *service) run(ctx context.Context, input RunInput) (*RunResult, error) {
	var result *RunResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		candidates, err := repo.FindValidatedOrders(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load validated orders")
		}

		// Each order is claimed with a compare-and-swap so a concurrent sweep
		// or completion never consumes the same order twice.
		claimed := candidates[:0]
		for i := range candidates {
			ok, err := repo.ClaimOrder(ctx, candidates[i].ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
			}
			if ok {
				claimed = append(claimed, candidates[i])
			}
		}
		if len(claimed) == 0 {
			return pkgerrors.New(pkgerrors.CodeNoEligibleOrders, "no validated orders to consolidate")
		}

		productIDs := map[uuid.UUID]struct{}{}
		for i := range claimed {
			for j := range claimed[i].Items {
				productIDs[claimed[i].Items[j].ProductID] = struct{}{}
			}
		}
		ids := make([]uuid.UUID, 0, len(productIDs))
		for id := range productIDs {
			ids = append(ids, id)
		}
		providers, err := repo.ProductProviders(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve product providers")
		}

		groups := map[groupKey]*groupAccumulator{}
		for i := range claimed {
			order := &claimed[i]
			for j := range order.Items {
				item := &order.Items[j]
				providerID, ok := providers[item.ProductID]
				if !ok {
					return pkgerrors.New(pkgerrors.CodeDependency,
						fmt.Sprintf("product %s has no provider", item.ProductID))
				}
				key := groupKey{providerID: providerID, productID: item.ProductID}
				acc, ok := groups[key]
				if !ok {
					acc = &groupAccumulator{sourceOrderIDs: map[uuid.UUID]struct{}{}}
					groups[key] = acc
				}
				acc.totalQty += item.Qty
				if acc.priceSeenAt.IsZero() || !order.CreatedAt.Before(acc.priceSeenAt) {
					acc.unitPrice = item.UnitPrice
					acc.priceSeenAt = order.CreatedAt
				}
				acc.sourceOrderIDs[order.ID] = struct{}{}
			}
		}

		byProvider := map[uuid.UUID][]groupKey{}
		for key := range groups {
			byProvider[key.providerID] = append(byProvider[key.providerID], key)
		}
		providerIDs := make([]uuid.UUID, 0, len(byProvider))
		for providerID := range byProvider {
			providerIDs = append(providerIDs, providerID)
		}
		// Deterministic output order keeps the result stable for callers and tests.
		sort.Slice(providerIDs, func(i, j int) bool {
			return providerIDs[i].String() < providerIDs[j].String()
		})

		result = &RunResult{OrdersConsumed: len(claimed)}
		for _, providerID := range providerIDs {
			keys := byProvider[providerID]
			sort.Slice(keys, func(i, j int) bool {
				return keys[i].productID.String() < keys[j].productID.String()
			})

			order := &models.ConsolidatedOrder{ProviderID: providerID}
			sources := map[uuid.UUID]struct{}{}
			for _, key := range keys {
				acc := groups[key]
				qty := decimal.NewFromInt(int64(acc.totalQty))
				order.Items = append(order.Items, models.ConsolidatedItem{
					ProductID: key.productID,
					TotalQty:  acc.totalQty,
					UnitPrice: acc.unitPrice,
					LineTotal: acc.unitPrice.Mul(qty),
				})
				for id := range acc.sourceOrderIDs {
					sources[id] = struct{}{}
				}
			}

			created, err := repo.CreateConsolidatedOrder(ctx, order)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create consolidated order")
			}

			sourceIDs := make([]uuid.UUID, 0, len(sources))
			for id := range sources {
				sourceIDs = append(sourceIDs, id)
			}
			sort.Slice(sourceIDs, func(i, j int) bool {
				return sourceIDs[i].String() < sourceIDs[j].String()
			})

			event := outbox.DomainEvent{
				EventType:     enums.EventConsolidationRun,
				AggregateType: enums.AggregateConsolidatedOrder,
				AggregateID:   created.ID,
				Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role.String()},
				Data: ConsolidationRunEvent{
					ConsolidatedOrderID: created.ID,
					ProviderID:          providerID,
					SourceOrderIDs:      sourceIDs,
					ItemCount:           len(created.Items),
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
			// Reload so the result carries the same product and provider
			// summaries a later fetch would.
			loaded, err := repo.FindConsolidatedOrder(ctx, created.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consolidated order")
			}
			result.ConsolidatedOrders = append(result.ConsolidatedOrders, *FromModel(loaded))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*ConsolidatedOrderDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consolidated order id required")
	}
	order, err := s.repo.FindConsolidatedOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "consolidated order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consolidated order")
	}
	if err := authorizeRead(order.ProviderID, actor); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ConsolidatedOrderList, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	filters := input.Filters
	switch input.Actor.Role {
	case enums.UserRoleEmployee:
	case enums.UserRoleProvider:
		// Providers only ever see consolidated orders addressed to them.
		own := input.Actor.UserID
		filters.ProviderID = &own
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list consolidated orders")
	}

	list, err := s.repo.ListConsolidatedOrders(ctx, input.Params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list consolidated orders")
	}
	return list, nil
}

func authorizeRead(providerID uuid.UUID, actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	switch actor.Role {
	case enums.UserRoleEmployee:
		return nil
	case enums.UserRoleProvider:
		if providerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "consolidated order belongs to another provider")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot view consolidated orders")
	}
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
