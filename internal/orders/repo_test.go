package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	"github.com/ordena-app/ordena-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  base_price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  provider_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func createTestOrder(t *testing.T, repo Repository, status enums.OrderStatus) *models.Order {
	t.Helper()

	order, err := repo.CreateOrder(context.Background(), &models.Order{
		CustomerID: uuid.New(),
		Status:     status,
	})
	require.NoError(t, err)
	return order
}

func TestFindOrderPreloadsItems(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := createTestOrder(t, repo, enums.OrderStatusDraft)
	for i := 0; i < 2; i++ {
		_, err := repo.CreateOrderItem(ctx, &models.OrderItem{
			OrderID:   order.ID,
			ProductID: uuid.New(),
			Qty:       i + 1,
			UnitPrice: decimal.NewFromInt(int64(10 * (i + 1))),
		})
		require.NoError(t, err)
	}

	found, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 2)

	dto := FromModel(found)
	assert.True(t, dto.Total.Equal(decimal.NewFromInt(50)), "total was %s", dto.Total)
}

func TestFindOrderCarriesProductSnapshot(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := &models.Product{
		ID:         uuid.New(),
		SKU:        "SKU-HARINA",
		Name:       "Harina 1kg",
		BasePrice:  decimal.NewFromFloat(12.50),
		Stock:      10,
		ProviderID: uuid.New(),
	}
	require.NoError(t, db.Create(product).Error)

	order := createTestOrder(t, repo, enums.OrderStatusDraft)
	_, err := repo.CreateOrderItem(ctx, &models.OrderItem{
		OrderID:   order.ID,
		ProductID: product.ID,
		Qty:       2,
		UnitPrice: decimal.NewFromFloat(12.50),
	})
	require.NoError(t, err)

	found, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)

	dto := FromModel(found)
	require.NotNil(t, dto.Items[0].Product)
	assert.Equal(t, "SKU-HARINA", dto.Items[0].Product.SKU)
	assert.Equal(t, "Harina 1kg", dto.Items[0].Product.Name)
	assert.True(t, dto.Items[0].Product.BasePrice.Equal(decimal.NewFromFloat(12.50)))
}

func TestUpdateOrderStatusIsCompareAndSwap(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := createTestOrder(t, repo, enums.OrderStatusPendingValidation)

	claimed, err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPendingValidation, enums.OrderStatusValidated)
	require.NoError(t, err)
	require.True(t, claimed)

	// A second claim against the stale status must lose.
	claimed, err = repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPendingValidation, enums.OrderStatusDeclined)
	require.NoError(t, err)
	require.False(t, claimed)

	found, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusValidated, found.Status)
}

func TestDeleteOrderRemovesLines(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := createTestOrder(t, repo, enums.OrderStatusDraft)
	_, err := repo.CreateOrderItem(ctx, &models.OrderItem{
		OrderID:   order.ID,
		ProductID: uuid.New(),
		Qty:       1,
		UnitPrice: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteOrder(ctx, order.ID))

	_, err = repo.FindOrder(ctx, order.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestListOrdersFilters(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	validated := createTestOrder(t, repo, enums.OrderStatusValidated)
	createTestOrder(t, repo, enums.OrderStatusDraft)

	status := enums.OrderStatusValidated
	list, err := repo.ListOrders(ctx, pagination.Params{}, ListFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	require.Equal(t, validated.ID, list.Orders[0].ID)

	customer := validated.CustomerID
	list, err = repo.ListOrders(ctx, pagination.Params{}, ListFilters{CustomerID: &customer})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
}

func TestListOrdersPaginates(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		createTestOrder(t, repo, enums.OrderStatusDraft)
	}

	page, err := repo.ListOrders(ctx, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := repo.ListOrders(ctx, pagination.Params{Limit: 2, Cursor: page.NextCursor}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	require.Empty(t, rest.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, o := range append(page.Orders, rest.Orders...) {
		require.False(t, seen[o.ID], "order %s returned twice", o.ID)
		seen[o.ID] = true
	}
}
