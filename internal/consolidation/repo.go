package consolidation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	"github.com/ordena-app/ordena-backend/pkg/pagination"
)

// Repository defines persistence operations for the consolidation sweep.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// FindValidatedOrders returns every order currently eligible for
	// consolidation, oldest first, with its lines.
	FindValidatedOrders(ctx context.Context) ([]models.Order, error)
	// ClaimOrder performs the validated -> consolidated compare-and-swap and
	// reports whether this sweep won the row.
	ClaimOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	// ProductProviders maps product ids to the provider that owns them.
	ProductProviders(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	CreateConsolidatedOrder(ctx context.Context, order *models.ConsolidatedOrder) (*models.ConsolidatedOrder, error)
	FindConsolidatedOrder(ctx context.Context, id uuid.UUID) (*models.ConsolidatedOrder, error)
	ListConsolidatedOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*ConsolidatedOrderList, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a consolidation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindValidatedOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("status = ?", enums.OrderStatusValidated).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ClaimOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusValidated).
		Update("status", enums.OrderStatusConsolidated)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ProductProviders(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	providers := map[uuid.UUID]uuid.UUID{}
	if len(productIDs) == 0 {
		return providers, nil
	}

	var rows []models.Product
	err := r.db.WithContext(ctx).
		Select("id", "provider_id").
		Where("id IN ?", productIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		providers[row.ID] = row.ProviderID
	}
	return providers, nil
}

func (r *repository) CreateConsolidatedOrder(ctx context.Context, order *models.ConsolidatedOrder) (*models.ConsolidatedOrder, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].ConsolidatedOrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindConsolidatedOrder(ctx context.Context, id uuid.UUID) (*models.ConsolidatedOrder, error) {
	var order models.ConsolidatedOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Provider").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListConsolidatedOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*ConsolidatedOrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.ConsolidatedOrder{})
	if filters.ProviderID != nil {
		query = query.Where("provider_id = ?", *filters.ProviderID)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.ConsolidatedOrder
	err = query.
		Preload("Items").
		Preload("Items.Product").
		Preload("Provider").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &ConsolidatedOrderList{ConsolidatedOrders: make([]ConsolidatedOrderDTO, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		list.ConsolidatedOrders = append(list.ConsolidatedOrders, *FromModel(&rows[i]))
	}
	if hasMore {
		last := rows[len(rows)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}
